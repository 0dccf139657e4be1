package main

import (
	"fmt"

	dig_container "github.com/trezcool/masomo-attendance/apps/api/di/dig"
	echoapi "github.com/trezcool/masomo-attendance/apps/api/echo"
	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/services/digest"
	"github.com/trezcool/masomo-attendance/storage"
)

func startWithDig() {
	c := dig_container.New()

	must(c.Invoke(func(
		conf *core.Config,
		apiLogger core.Logger,
		dbLoggerParam dig_container.DBLoggerParam,
		store *storage.Storage,
		digestSvc *digest.Service,
		server *echoapi.Server,
	) {
		// =========================================================================
		// Initialize App

		apiLogger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))

		dbLogger := dbLoggerParam.Logger
		defer func() {
			if err := store.Close(); err != nil {
				dbLogger.Fatal("Failed to close", err)
			}
		}()
		defer apiLogger.Info("Application stopped")

		startDebugServer(conf, apiLogger)

		stopDigest := startDigest(conf, digestSvc, apiLogger)
		defer stopDigest()

		serve(conf, server, apiLogger)
	}))
}
