package core

// Logger is implemented by any logging backend used by the app.
// args are optional extras: an error, a map[string]interface{} of custom data, or the user.User concerned.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
