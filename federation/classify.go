package federation

import (
	"regexp"
	"strings"
)

var handlePattern = regexp.MustCompile(`^@?[^@\s]+@\S+$`)

// IsHandleLike reports whether input should be resolved over the network
// as a remote handle or url rather than filtered locally. Email-shaped
// text counts as a handle. The whole trimmed input must be one token, so
// a handle followed by more words is searched locally instead.
func IsHandleLike(input string) bool {
	s := strings.TrimSpace(input)
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return true
	}
	return handlePattern.MatchString(s)
}
