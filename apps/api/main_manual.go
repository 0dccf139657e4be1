package main

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	dig_container "github.com/trezcool/masomo-attendance/apps/api/di/dig"
	echoapi "github.com/trezcool/masomo-attendance/apps/api/echo"
	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	"github.com/trezcool/masomo-attendance/services/digest"
	logsvc "github.com/trezcool/masomo-attendance/services/logger"
	"github.com/trezcool/masomo-attendance/storage"
)

func startManual() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.New("API", conf)
	dbLogger := logsvc.New("DB", conf)

	// set up DB
	store, err := storage.Open(conf, true)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = store.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	translator := dig_container.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	// set up services
	opts := attendance.NewOptions(conf)
	rec := attendance.NewRecorder(store.Attendance, store.Roster, validate, translator, opts)
	agg := attendance.NewAggregator(store.Attendance, store.Roster, opts)
	mailSvc := dig_container.NewEmailService(conf, logger)

	digestSvc, err := digest.NewService(store.Attendance, agg, mailSvc, conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up digest: %v", err), err)
	}

	// =========================================================================
	// Start Debug Service

	startDebugServer(conf, logger)

	stopDigest := startDigest(conf, digestSvc, logger)
	defer stopDigest()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:       conf,
			Logger:     logger,
			Recorder:   rec,
			Aggregator: agg,
			Cache:      dig_container.NewReportCache(conf, logger),
			Validate:   validate,
			Translator: translator,
		},
	)

	serve(conf, server, logger)
}
