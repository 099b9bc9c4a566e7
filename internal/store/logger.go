package store

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormWriter sends gorm's log lines to logrus at warn level.
type gormWriter struct {
	log logrus.FieldLogger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warnf(format, args...)
}

// newGormLogger reports slow queries and unexpected errors through log.
// Missing rows are normal lookups and stay quiet.
func newGormLogger(log logrus.FieldLogger) logger.Interface {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return logger.New(
		gormWriter{log: log.WithField("component", "gorm")},
		logger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
