package classify

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/david/signal-desk/internal/models"
)

// Hours per compensation period used for hourly normalisation.
const (
	hoursPerDay   = 8.0
	hoursPerWeek  = 40.0
	hoursPerMonth = 173.33
	hoursPerYear  = 2080.0
)

// RateResult is compensation extracted from text, with an hourly equivalent.
type RateResult struct {
	RateText  *string           `json:"rate_text"`
	Min       *float64          `json:"min"`
	Max       *float64          `json:"max"`
	Period    models.CompPeriod `json:"comp_period"`
	HourlyMin *float64          `json:"hourly_min"`
	HourlyMax *float64          `json:"hourly_max"`
}

// HasRate reports whether any dialect matched.
func (r RateResult) HasRate() bool {
	return r.RateText != nil
}

type rateDialect struct {
	period models.CompPeriod
	hours  float64
	re     *regexp.Regexp
	// kShorthand multiplies any value below 1000 by 1000.
	kShorthand bool
}

const (
	// leftEdge keeps a figure from starting inside a token such as "H1B".
	leftEdge  = `(?:^|[^A-Za-z0-9])`
	numPart   = `\$?\s*(\d[\d,]*(?:\.\d+)?)\s*(k)?`
	rangePart = `(?:\s*(?:-|–|—|to)\s*` + numPart + `)?`
	bareK     = `\$?\s*(\d+(?:\.\d+)?)\s*k\b(?:\s*(?:-|–|—|to)\s*\$?\s*(\d+(?:\.\d+)?)\s*k\b)?`
)

func dialectRegexp(suffix string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + leftEdge + numPart + rangePart + `(?:` + suffix + `)`)
}

// staffingTags hold digits that are never amounts. A "$" in front keeps the
// figure ("$1099/month").
var staffingTags = regexp.MustCompile(`(?i)(?:^|[^$\w])(w-?2|1099|c2c|c2h|401\(?k\)?)`)

// maskStaffingTags blanks tag bytes with '_' so offsets into text stay valid.
func maskStaffingTags(text string) string {
	matches := staffingTags.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return text
	}
	buf := []byte(text)
	for _, m := range matches {
		start, end := m[2], m[3]
		if end < len(text) && isTagContinuation(text[end:]) {
			continue
		}
		for i := start; i < end; i++ {
			buf[i] = '_'
		}
	}
	return string(buf)
}

// isTagContinuation reports whether rest extends the tag into a longer
// token or a decimal figure ("10995", "1099.50").
func isTagContinuation(rest string) bool {
	c := rest[0]
	if c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' {
		return true
	}
	return (c == '.' || c == ',') && len(rest) > 1 && rest[1] >= '0' && rest[1] <= '9'
}

// rateDialects are tried in order; the first that matches wins.
var rateDialects = []rateDialect{
	{
		period: models.PeriodHour,
		hours:  1,
		re:     dialectRegexp(`\s*(?:/|per|an?)\s*(?:hr|hour)s?\b|\s+hourly\b|\s*/\s*h\b`),
	},
	{
		period: models.PeriodDay,
		hours:  hoursPerDay,
		re:     dialectRegexp(`\s*(?:/|per|an?)\s*day\b|\s+daily\b`),
	},
	{
		period: models.PeriodWeek,
		hours:  hoursPerWeek,
		re:     dialectRegexp(`\s*(?:/|per|an?)\s*(?:week|wk)\b|\s+weekly\b`),
	},
	{
		period:     models.PeriodYear,
		hours:      hoursPerYear,
		re:         regexp.MustCompile(`(?i)` + leftEdge + `(?:` + numPart + rangePart + `(?:\s*(?:/|per|an?)\s*(?:year|yr|annum)\b|\s+(?:annually|annual|yearly|salary)\b)|` + bareK + `)`),
		kShorthand: true,
	},
	{
		period: models.PeriodMonth,
		hours:  hoursPerMonth,
		re:     dialectRegexp(`\s*(?:/|per|an?)\s*(?:month|mo)\b|\s+monthly\b`),
	},
}

// ExtractRate finds the first compensation dialect in text and normalises it to hourly.
// No match yields a nil RateText and PeriodUnknown.
func ExtractRate(text string) RateResult {
	text = sanitizeUTF8(text)
	masked := maskStaffingTags(text)

	for _, d := range rateDialects {
		loc := d.re.FindStringSubmatchIndex(masked)
		if loc == nil {
			continue
		}
		groups := submatches(masked, loc)

		lo, hi, ok := pickRange(groups, d.kShorthand)
		if !ok {
			continue
		}

		rateText := strings.TrimSpace(text[matchStart(text, loc):loc[1]])
		hMin := roundCents(lo / d.hours)
		hMax := roundCents(hi / d.hours)
		return RateResult{
			RateText:  &rateText,
			Min:       &lo,
			Max:       &hi,
			Period:    d.period,
			HourlyMin: &hMin,
			HourlyMax: &hMax,
		}
	}

	return RateResult{Period: models.PeriodUnknown}
}

// matchStart skips the boundary rune leftEdge consumed ahead of the figure.
func matchStart(text string, loc []int) int {
	start, numStart := loc[0], loc[1]
	for _, g := range []int{1, 5} {
		if 2*g < len(loc) && loc[2*g] >= 0 {
			numStart = loc[2*g]
			break
		}
	}
	if start < numStart && text[start] != '$' {
		_, size := utf8.DecodeRuneInString(text[start:])
		start += size
	}
	return start
}

func submatches(text string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}

// pickRange reads (low, lowK, high, highK) from the first populated group set.
// The annual dialect has a second alternation for bare "K" figures.
func pickRange(groups []string, kShorthand bool) (float64, float64, bool) {
	var loRaw, loK, hiRaw, hiK string
	switch {
	case len(groups) > 1 && groups[1] != "":
		loRaw, loK = groups[1], groups[2]
		hiRaw, hiK = groups[3], groups[4]
	case len(groups) > 6 && groups[5] != "":
		loRaw, loK = groups[5], "k"
		if groups[6] != "" {
			hiRaw, hiK = groups[6], "k"
		}
	default:
		return 0, 0, false
	}

	lo, ok := parseRateNumber(loRaw, loK != "", kShorthand)
	if !ok {
		return 0, 0, false
	}
	hi := lo
	if hiRaw != "" {
		if v, ok := parseRateNumber(hiRaw, hiK != "", kShorthand); ok {
			hi = v
		}
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi, true
}

func parseRateNumber(raw string, k bool, kShorthand bool) (float64, bool) {
	clean := strings.ReplaceAll(raw, ",", "")
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) {
		return 0, false
	}
	if k || (kShorthand && v < 1000) {
		v *= 1000
	}
	return v, true
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
