package core

// Logger is implemented by the log services.
// args may carry errors, maps of extra data or the user acting when the entry was logged.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
