package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"

	echoapi "github.com/trezcool/masomo-attendance/apps/api/echo"
	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/services/digest"
)

// startDebugServer serves /debug/vars, added to the default mux by importing the expvar package.
func startDebugServer(conf *core.Config, logger core.Logger) {
	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("database").Set(conf.Database.Engine)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()
}

// startDigest schedules the low attendance digest when a schedule is configured.
// The returned func stops it.
func startDigest(conf *core.Config, svc *digest.Service, logger core.Logger) func() {
	if conf.Digest.Schedule == "" {
		return func() {}
	}
	c, err := digest.Schedule(conf.Digest.Schedule, svc, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("scheduling digest: %v", err), err)
	}
	logger.Info(fmt.Sprintf("digest scheduled: %q", conf.Digest.Schedule))
	return func() { <-c.Stop().Done() }
}

// serve runs server until it fails or a shutdown signal comes in.
func serve(conf *core.Config, server *echoapi.Server, logger core.Logger) {
	go func() {
		server.Start()
	}()

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
