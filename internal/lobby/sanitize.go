package lobby

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxNameLength = 30
	MaxChatLength = 200
)

var (
	scriptTag    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	jsScheme     = regexp.MustCompile(`(?i)javascript:`)
	eventHandler = regexp.MustCompile(`(?i)on\w+\s*=`)
)

// Sanitize strips script injections, collapses whitespace and escapes HTML.
// The escaped result is at most limit runes; an entity is never split.
func Sanitize(s string, limit int) string {
	s = scriptTag.ReplaceAllString(s, "")
	s = jsScheme.ReplaceAllString(s, "")
	s = eventHandler.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")

	var b strings.Builder
	n := 0
	for _, r := range s {
		e := html.EscapeString(string(r))
		k := utf8.RuneCountInString(e)
		if n+k > limit {
			break
		}
		b.WriteString(e)
		n += k
	}
	return strings.TrimSpace(b.String())
}

// SanitizeName cleans a display name, falling back to def when nothing is left.
func SanitizeName(name, def string) string {
	if n := Sanitize(name, MaxNameLength); n != "" {
		return n
	}
	return def
}

var emotes = map[string]bool{
	"👍": true, "👎": true, "😄": true, "😢": true, "😮": true,
	"🎉": true, "💭": true, "🔥": true, "❤️": true, "😤": true,
}

// AllowedEmote reports whether e is one of the fixed emotes.
func AllowedEmote(e string) bool { return emotes[e] }
