package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"unicode/utf8"
)

// descriptionPrefix is how many runes of the description enter the fingerprint.
const descriptionPrefix = 300

// Fields are the display fields a fingerprint is computed from.
type Fields struct {
	Title       string
	Company     string
	Location    string
	ApplyURL    string
	Description string
}

// Normalize lowercases s and drops everything outside [a-z0-9].
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Domain returns the lowercase hostname of rawURL without a leading "www.",
// or "" when rawURL has no parseable host.
func Domain(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// Fingerprint is a stable sha256 over the five normalized fields. Only the
// first 300 description runes count, so shared boilerplate openings merge and
// edits further down do not split.
func Fingerprint(f Fields) string {
	desc := f.Description
	if !utf8.ValidString(desc) {
		desc = strings.ToValidUTF8(desc, "")
	}
	if utf8.RuneCountInString(desc) > descriptionPrefix {
		desc = string([]rune(desc)[:descriptionPrefix])
	}

	key := strings.Join([]string{
		Normalize(f.Title),
		Normalize(f.Company),
		Normalize(f.Location),
		Domain(f.ApplyURL),
		Normalize(desc),
	}, "|")

	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
