package dig_container

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomo-attendance/apps/api/echo"
	"github.com/trezcool/masomo-attendance/core"
	"github.com/trezcool/masomo-attendance/core/attendance"
	"github.com/trezcool/masomo-attendance/services/digest"
	emailsvc "github.com/trezcool/masomo-attendance/services/email"
	logsvc "github.com/trezcool/masomo-attendance/services/logger"
	"github.com/trezcool/masomo-attendance/storage"
	"github.com/trezcool/masomo-attendance/storage/cache"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	return logsvc.New("API", conf)
}

func newDBLogger(conf *core.Config) core.Logger {
	return logsvc.New("DB", conf)
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) (*storage.Storage, attendance.Repository, attendance.Roster) {
	store, err := storage.Open(conf, true)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return store, store.Attendance, store.Roster
}

// NewReportCache returns the redis report cache, or a no-op one when redis is not configured or unreachable.
func NewReportCache(conf *core.Config, logger core.Logger) cache.ReportCache {
	if conf.Redis.Addr == "" {
		return cache.NewNopCache()
	}
	client, err := cache.Open(context.Background(), conf)
	if err != nil {
		logger.Warn(fmt.Sprintf("report caching disabled: %v", err), err)
		return cache.NewNopCache()
	}
	return cache.NewRedisCache(client, conf.Redis.TTL)
}

func NewEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	return validate
}

func newRecorder(
	repo attendance.Repository,
	roster attendance.Roster,
	validate *validator.Validate,
	translator ut.Translator,
	conf *core.Config,
) attendance.Recorder {
	return attendance.NewRecorder(repo, roster, validate, translator, attendance.NewOptions(conf))
}

func newAggregator(repo attendance.Repository, roster attendance.Roster, conf *core.Config) attendance.Aggregator {
	return attendance.NewAggregator(repo, roster, attendance.NewOptions(conf))
}

func newDigestService(
	repo attendance.Repository,
	agg attendance.Aggregator,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) (*digest.Service, error) {
	return digest.NewService(repo, agg, mailSvc, conf, logger)
}

type serverParams struct {
	dig.In

	Conf       *core.Config
	Logger     core.Logger
	Recorder   attendance.Recorder
	Aggregator attendance.Aggregator
	Cache      cache.ReportCache
	Validate   *validator.Validate
	Translator ut.Translator
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Recorder:   p.Recorder,
		Aggregator: p.Aggregator,
		Cache:      p.Cache,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(NewReportCache))
	must(c.Provide(NewEmailService))
	must(c.Provide(NewTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newRecorder))
	must(c.Provide(newAggregator))
	must(c.Provide(newDigestService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
