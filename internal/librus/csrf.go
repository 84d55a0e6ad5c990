package librus

import "regexp"

var csrfPattern = regexp.MustCompile(`name="_token"[^>]*value="([^"]+)"`)

// ExtractCsrfToken scans login page markup for the hidden `_token` field and
// returns its value exactly as it appears in the markup.
func ExtractCsrfToken(markup string) (string, bool) {
	groups := csrfPattern.FindStringSubmatch(markup)
	if len(groups) < 2 {
		return "", false
	}
	return groups[1], true
}
