package chat

import "strings"

// Separator joins the two participant ids of a session id. Participant ids
// must not contain it; this is not checked at runtime.
const Separator = "_"

// SessionID derives the chat session id for a pair of participants.
// The result does not depend on argument order.
func SessionID(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + Separator + b
}

// Participants splits a session id back into its two participant ids.
func Participants(sessionID string) (string, string, bool) {
	return strings.Cut(sessionID, Separator)
}
