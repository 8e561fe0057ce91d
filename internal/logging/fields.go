package logging

import "log/slog"

// Common field names for consistent logging across the relay.
const (
	FieldService  = "service"
	FieldUserID   = "user_id"
	FieldConnID   = "conn_id"
	FieldRemote   = "remote_addr"
	FieldEvent    = "event_type"
	FieldChannel  = "channel"
	FieldSubject  = "subject"
	FieldError    = "error"
	FieldDuration = "duration_ms"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// UserID returns a slog attribute for the resolved user identity.
func UserID(id string) slog.Attr {
	return slog.String(FieldUserID, id)
}

// ConnID returns a slog attribute for a connection handle.
func ConnID(id string) slog.Attr {
	return slog.String(FieldConnID, id)
}

// Remote returns a slog attribute for the peer address.
func Remote(addr string) slog.Attr {
	return slog.String(FieldRemote, addr)
}

// Event returns a slog attribute for an outbound event kind.
func Event(kind string) slog.Attr {
	return slog.String(FieldEvent, kind)
}

// Channel returns a slog attribute for a declared channel name.
func Channel(name string) slog.Attr {
	return slog.String(FieldChannel, name)
}

// Subject returns a slog attribute for a messaging subject.
func Subject(subject string) slog.Attr {
	return slog.String(FieldSubject, subject)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}
