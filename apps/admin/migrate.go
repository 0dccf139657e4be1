package main

import (
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-attendance/storage/database"
)

var gooseRunFunc = database.RunMigration // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errors.New("migrations need the postgres database engine")
	}
	return gooseRunFunc(args[0], cli.db.DB, args[1:]...)
}
