package bot

import (
	"fmt"
	"regexp"
	"time"
)

// urlPattern accepts http(s) URLs with a dotted host name or an IPv4 address,
// an optional port, path, query and fragment.
var urlPattern = regexp.MustCompile(`(?i)^(https?://)` +
	`((([a-z\d]([a-z\d-]*[a-z\d])*)\.?)+[a-z]{2,}|` +
	`((\d{1,3}\.){3}\d{1,3}))` +
	`(:\d+)?(/[-a-z\d%_.~+]*)*` +
	`(\?[;&a-z\d%_.~+=-]*)?` +
	`(#[-a-z\d_]*)?$`)

// ValidURL reports whether s looks like a link worth storing as a meme.
func ValidURL(s string) bool {
	return s != "" && urlPattern.MatchString(s)
}

// SubmissionHeader renders "Submitted by <user> on D-M-YYYY at HH:MM:SS (id: <id>)" in UTC.
func SubmissionHeader(user string, at time.Time, id string) string {
	at = at.UTC()
	return fmt.Sprintf("Submitted by %s on %d-%d-%d at %s (id: %s)",
		user, at.Day(), int(at.Month()), at.Year(), at.Format("15:04:05"), id)
}
