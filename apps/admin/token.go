package main

import (
	"fmt"

	echoapi "github.com/trezcool/masomo-attendance/apps/api/echo"
	"github.com/trezcool/masomo-attendance/core"
)

// token prints a signed API token for actor.
func (cli *commandLine) token(actor core.Actor, roles []string) error {
	token, err := echoapi.GenerateToken(echoapi.NewClaims(actor, roles, cli.conf), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(cli.out, token)
	return nil
}
