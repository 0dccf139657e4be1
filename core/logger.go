package core

// Logger is any service that can log messages.
// args may hold errors, context maps and an Actor identifying who triggered the message.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Actor identifies the authenticated user behind a request.
type Actor struct {
	ID       string
	TenantID string
	Username string
	Email    string
}
