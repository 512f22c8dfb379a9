package auth

import (
	"net/url"
	"regexp"
	"strings"
)

// minCodeLength is the shortest plausible authorization code. Anything
// shorter after cleanup is treated as a paste accident.
const minCodeLength = 8

// pasteArtifacts are byte sequences terminals inject around pasted text
// (bracketed-paste markers, with and without the leading ESC that some
// readers strip).
var pasteArtifacts = []string{
	"\x1b[200~",
	"\x1b[201~",
	"[200~",
	"[201~",
}

// ansiEscape matches CSI escape sequences left over from terminal rendering.
var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// NormalizeAuthCode cleans a pasted authorization input and splits it into
// code and state. The input may be a bare code, a "code#state" pair as shown
// on the callback page, or a full callback URL carrying code and state query
// parameters. The returned state is empty when the input carried none.
func NormalizeAuthCode(raw string) (code, state string) {
	s := strings.TrimSpace(raw)
	for _, artifact := range pasteArtifacts {
		s = strings.ReplaceAll(s, artifact, "")
	}
	s = ansiEscape.ReplaceAllString(s, "")
	s = strings.Trim(s, "~\r\n \t")

	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil {
			q := u.Query()
			if c := q.Get("code"); c != "" {
				return c, q.Get("state")
			}
		}
	}

	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}
