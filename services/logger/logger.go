package logsvc

import (
	"log"
	"os"

	"github.com/trezcool/masomo-attendance/core"
)

// New returns the logger selected by conf.LogFormat: "json" logs through zap,
// anything else through rollbar and the standard logger.
func New(name string, conf *core.Config) core.Logger {
	if conf.LogFormat == "json" {
		logger, err := NewZapLogger(name, conf)
		if err == nil {
			return logger
		}
		log.Printf("falling back to text logs: %v", err)
	}

	logger := NewRollbarLogger(
		log.New(os.Stdout, name+" : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}
