package main

import (
	"fmt"
	"os"

	dig_container "github.com/trezcool/masomo-attendance/apps/api/di/dig"
	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	"github.com/trezcool/masomo-attendance/services/digest"
	logsvc "github.com/trezcool/masomo-attendance/services/logger"
	"github.com/trezcool/masomo-attendance/storage"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.New("ADMIN", conf)

	// set up DB; migrations are left to the migrate command
	store, err := storage.Open(conf, false)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}

	opts := attendance.NewOptions(conf)
	agg := attendance.NewAggregator(store.Attendance, store.Roster, opts)
	digestSvc, err := digest.NewService(store.Attendance, agg, dig_container.NewEmailService(conf, logger), conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up digest: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		conf:   conf,
		db:     store.DB,
		agg:    agg,
		digest: digestSvc,
		out:    os.Stdout,
	}
	err = cli.run(os.Args)
	if cErr := store.Close(); cErr != nil {
		logger.Error(fmt.Sprintf("closing database: %v", cErr), cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
