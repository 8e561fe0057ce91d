package messaging

import "strings"

// Subjects producers publish notification events to. The trailing
// token of a user subject is the target identity.
const (
	subjectUserPrefix = "capycode.notify.user."

	// SubjectUserWildcard matches every per-user notification subject.
	SubjectUserWildcard = "capycode.notify.user.>"

	// SubjectBroadcast carries process-wide notices for all connections.
	SubjectBroadcast = "capycode.notify.broadcast"
)

// UserSubject returns the subject addressing one user's sessions.
func UserSubject(userID string) string {
	return subjectUserPrefix + userID
}

// UserFromSubject extracts the identity from a per-user subject.
// Returns "" for subjects outside the user namespace.
func UserFromSubject(subject string) string {
	if !strings.HasPrefix(subject, subjectUserPrefix) {
		return ""
	}
	return strings.TrimPrefix(subject, subjectUserPrefix)
}
