package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
)

var errHelp = errors.New("help provided")

type digestRunner interface {
	Run(ctx context.Context) (int, error)
}

type commandLine struct {
	conf   *core.Config
	db     *sqlx.DB // nil with the memory engine
	agg    attendance.Aggregator
	digest digestRunner
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  report -tenant ID -kind classes|students|daily|today [-from DATE -to DATE] [-class ID] [-format json|csv|xlsx] [-out FILE]")
	_, _ = fmt.Fprintln(cli.out, "  digest - email the low attendance digest now")
	_, _ = fmt.Fprintln(cli.out, "  token -tenant ID -user ID [-username NAME] [-roles ROLE,...] - issue an API token")
}

func (cli *commandLine) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "report":
		reportCmd := cli.flagSet("report")
		var p reportParams
		reportCmd.StringVar(&p.tenantID, "tenant", "", "The tenant to report on.")
		reportCmd.StringVar(&p.kind, "kind", "", "One of "+strings.Join(reportKinds, ", ")+".")
		reportCmd.StringVar(&p.from, "from", "", "First date of the report, YYYY-MM-DD. Defaults to the first day of the month.")
		reportCmd.StringVar(&p.to, "to", "", "Last date of the report, YYYY-MM-DD. Defaults to the last day of the month.")
		reportCmd.StringVar(&p.classID, "class", "", "Restrict the report to a class.")
		reportCmd.StringVar(&p.format, "format", "json", "One of json, csv, xlsx.")
		reportCmd.StringVar(&p.outPath, "out", "", "Write to this file instead of stdout.")
		if err := reportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if p.tenantID == "" || p.kind == "" {
			reportCmd.Usage()
			return errHelp
		}
		return cli.report(p)

	case "digest":
		sent, err := cli.digest.Run(context.Background())
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cli.out, "%d digests sent\n", sent)
		return nil

	case "token":
		tokenCmd := cli.flagSet("token")
		tenantID := tokenCmd.String("tenant", "", "The tenant the token is issued for.")
		userID := tokenCmd.String("user", "", "The user ID recorded as the token subject.")
		username := tokenCmd.String("username", "", "The username.")
		roles := tokenCmd.String("roles", "teacher", "Comma separated roles.")
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tenantID == "" || *userID == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(core.Actor{ID: *userID, TenantID: *tenantID, Username: *username}, splitRoles(*roles))

	default:
		cli.printUsage()
		return errHelp
	}
}

func splitRoles(s string) []string {
	var roles []string
	for _, r := range strings.Split(s, ",") {
		if r = core.CleanString(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
