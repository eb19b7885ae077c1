package constants

type contextKey string

const (
	// LoggerKey holds the request-scoped *logrus.Entry.
	LoggerKey    contextKey = "logger"
	RequestStart contextKey = "request_start"
)
