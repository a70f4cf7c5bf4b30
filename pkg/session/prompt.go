package session

import "strings"

// ContinuationMarker ends every secondary prompt
const ContinuationMarker = "#_=> "

// PrimaryPrompt is shown when the session buffer is empty
func PrimaryPrompt(namespace string) string {
	return namespace + "=> "
}

// SecondaryPrompt is shown while input is incomplete. It is padded so the
// marker ends where the primary prompt for the same namespace ends.
func SecondaryPrompt(namespace string) string {
	pad := len(PrimaryPrompt(namespace)) - len(ContinuationMarker)
	if pad < 0 {
		pad = 0
	}
	return strings.Repeat(" ", pad) + ContinuationMarker
}
