package log

import (
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	dslog "github.com/grafana/dskit/log"
)

// Logger is a shared go-kit logger.
var Logger = log.NewNopLogger()

// InitLogger initialises the global gokit logger and returns the same logger.
func InitLogger(lvl dslog.Level) log.Logger {
	Logger = NewLogger(lvl)
	return Logger
}

// NewLogger builds a logfmt logger writing to stderr, filtered at lvl.
func NewLogger(lvl dslog.Level) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, lvl.Option)
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.Caller(3))
}

// WithQuery returns a logger tagged with the query id and batch number.
func WithQuery(l log.Logger, qid string, batch int) log.Logger {
	return log.With(l, "qid", qid, "batch", batch)
}

// CheckFatal prints an error and exits with error code 1 if err is non-nil.
func CheckFatal(location string, err error) {
	if err == nil {
		return
	}
	logger := level.Error(Logger)
	if location != "" {
		logger = log.With(logger, "msg", "error "+location)
	}
	// %+v gets the stack trace from errors using github.com/pkg/errors
	_ = logger.Log("err", fmt.Sprintf("%+v", err))
	os.Exit(1)
}
