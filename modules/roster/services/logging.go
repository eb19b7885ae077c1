package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/roster-sync/pkg/constants"
	"github.com/iota-uz/roster-sync/pkg/logging"
)

func loggerFromContext(ctx context.Context) *logrus.Entry {
	if ctx == nil {
		return nil
	}
	v := ctx.Value(constants.LoggerKey)
	switch typed := v.(type) {
	case *logrus.Entry:
		return typed
	case *logrus.Logger:
		return logrus.NewEntry(typed)
	default:
		return nil
	}
}

// jobLogger prefers the configured logger, then the request logger, then a nop entry.
func jobLogger(ctx context.Context, configured *logrus.Entry) *logrus.Entry {
	if configured != nil {
		return configured
	}
	if l := loggerFromContext(ctx); l != nil {
		return l
	}
	return logging.Nop()
}
