package scoring

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/david/signal-desk/internal/dedup"
	"github.com/david/signal-desk/internal/models"
)

// Signal is the derived view of a record that both scorers read.
type Signal struct {
	Title          string
	Company        string
	Description    string // plain text
	Location       string
	ApplyURL       string
	RecruiterName  string
	RecruiterEmail string
	RecruiterPhone string
	PostedAt       *time.Time

	EmploymentType  models.EmploymentType
	Confidence      float64
	NegativeSignals []string

	HasCompensation bool // extracted rate or provider salary fields
	HourlyMin       *float64
	HourlyMax       *float64

	URLStatus models.URLStatus

	VendorMatched bool
	CompanyDomain string
}

var confidentialCompany = regexp.MustCompile(`(?i)^\s*$|confidential|undisclosed|unknown|anonymous|stealth|withheld|^\s*(?:n/?a|none|private|company|client|hiring company|our client|tbd)\s*$`)

// IsConfidentialCompany reports an empty, withheld or placeholder company name.
func IsConfidentialCompany(company string) bool {
	return confidentialCompany.MatchString(company)
}

// genericLocations normalize to values that do not pin down a place.
var genericLocations = map[string]struct{}{
	"":                      {},
	"remote":                {},
	"anywhere":              {},
	"usa":                   {},
	"us":                    {},
	"unitedstates":          {},
	"unitedstatesofamerica": {},
	"nationwide":            {},
	"various":               {},
	"variouslocations":      {},
	"multiplelocations":     {},
	"na":                    {},
	"tbd":                   {},
	"remoteus":              {},
	"remoteusa":             {},
	"worldwide":             {},
}

// IsSpecificLocation reports whether location names an actual place.
func IsSpecificLocation(location string) bool {
	_, generic := genericLocations[dedup.Normalize(location)]
	return !generic
}

func descriptionLength(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

func nonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}

func countMatches(patterns []*regexp.Regexp, text string) int {
	n := 0
	for _, re := range patterns {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}
