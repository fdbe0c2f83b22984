package processor

import (
	"regexp"
	"strings"
)

// Mask tokens substituted for personal data.
const (
	TokenEmail = "EMAIL"
	TokenPhone = "PHONE"
	TokenURL   = "URL"
)

var (
	maskTokenRe   = regexp.MustCompile(`\b(?:EMAIL|PHONE|URL)\b`)
	emailRe       = regexp.MustCompile(`\S+@\S+`)
	phoneRe       = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
	urlRe         = regexp.MustCompile(`http\S+|www\.\S+`)
	punctuationRe = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Normalize lowercases text, masks emails, phone numbers and URLs, turns
// punctuation into spaces and collapses whitespace. Mask tokens survive
// lowercasing so Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	text = lowerKeepingTokens(text)
	text = emailRe.ReplaceAllString(text, " "+TokenEmail+" ")
	text = phoneRe.ReplaceAllString(text, " "+TokenPhone+" ")
	text = urlRe.ReplaceAllString(text, " "+TokenURL+" ")
	text = punctuationRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func lowerKeepingTokens(text string) string {
	locs := maskTokenRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return strings.ToLower(text)
	}

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, loc := range locs {
		b.WriteString(strings.ToLower(text[last:loc[0]]))
		b.WriteString(text[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(strings.ToLower(text[last:]))
	return b.String()
}
