package core

// Logger is any structured logging/error reporting service.
// args may contain an error, a map[string]interface{} of extras and the user.User acting.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
