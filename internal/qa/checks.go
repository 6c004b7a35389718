package qa

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/david/signal-desk/internal/classify"
	"github.com/david/signal-desk/internal/dedup"
	"github.com/david/signal-desk/internal/models"
	"github.com/david/signal-desk/internal/scoring"
)

const (
	plausibleConfidence = 0.5
	bogusDescription    = 50
	freshPosting        = 7 * 24 * time.Hour
	freshSighting       = 3 * 24 * time.Hour
	harvestTitle        = 10
	harvestDescription  = 200
)

// spamTitles are title phrases that mark a posting as bogus on their own.
var spamTitles = regexp.MustCompile(`(?i)work\s+from\s+home\s+(?:\$|earn|opportunity)|earn\s+\$|make\s+money|be\s+your\s+own\s+boss|mystery\s+shopper|easy\s+money|get\s+paid\s+(?:daily|today|to)|no\s+experience\s+(?:needed|required)|\${2,}|!{3,}|data\s+entry\s+clerk\s+-\s+remote`)

var genericCompanyNames = map[string]struct{}{
	"staffing": {}, "staffingagency": {}, "recruiter": {}, "recruiting": {}, "recruitment": {},
	"hiring": {}, "hiringnow": {}, "jobs": {}, "careers": {}, "employer": {}, "talent": {},
	"talentacquisition": {}, "itcompany": {}, "techcompany": {}, "consulting": {},
}

var suspiciousHosts = []string{
	"bit.ly", "tinyurl.com", "goo.gl", "t.co", "ow.ly", "is.gd", "forms.gle", "typeform.com", "jotform.com",
}

// Checks are the six independent checks plus the harvest heuristic.
type Checks struct {
	URL        models.URLStatus
	Plausible  bool
	Duplicate  bool
	Bogus      bool
	HasContact bool
	Fresh      bool
	Harvest    bool
}

// Evaluate picks the verdict; the first matching rule wins.
func Evaluate(c Checks) models.QaVerdict {
	switch {
	case c.Bogus:
		return models.VerdictBogus
	case c.URL == models.URLDead:
		return models.VerdictFail
	case c.Harvest:
		return models.VerdictHarvest
	case !c.Fresh:
		return models.VerdictStale
	case c.Duplicate:
		return models.VerdictDuplicate
	default:
		return models.VerdictPass
	}
}

// IsPlausible reports whether the stored classification holds up.
func IsPlausible(s *models.MarketSignal) bool {
	return s.Confidence > plausibleConfidence &&
		s.EmploymentType != models.TypeUnknown &&
		!classify.Contradicts(s.EmploymentType, s.NegativeSignals)
}

func IsBogus(s *models.MarketSignal) bool {
	return scoring.IsConfidentialCompany(s.Company) ||
		utf8.RuneCountInString(strings.TrimSpace(s.Description)) < bogusDescription ||
		spamTitles.MatchString(s.Title)
}

func HasContact(s *models.MarketSignal) bool {
	return strings.TrimSpace(s.RecruiterEmail) != "" || strings.TrimSpace(s.RecruiterPhone) != ""
}

// IsFresh uses the posted date, or first sighting when the provider gave none.
func IsFresh(s *models.MarketSignal, now time.Time) bool {
	best := s.FirstSeenAt
	if s.PostedAt != nil {
		best = *s.PostedAt
	}
	return now.Sub(best) <= freshPosting || now.Sub(s.LastSeenAt) <= freshSighting
}

// IsHarvest flags resume-harvesting posts: no location, a generic company or
// a suspicious apply link, and too little content.
func IsHarvest(s *models.MarketSignal) bool {
	if strings.TrimSpace(s.Location) != "" {
		return false
	}
	if !isGenericCompany(s.Company) && !isSuspiciousApplyURL(s.ApplyURL) {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(s.Title)) < harvestTitle ||
		utf8.RuneCountInString(strings.TrimSpace(s.Description)) < harvestDescription
}

func isGenericCompany(company string) bool {
	if scoring.IsConfidentialCompany(company) {
		return true
	}
	_, ok := genericCompanyNames[dedup.Normalize(company)]
	return ok
}

func isSuspiciousApplyURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(strings.ToLower(raw), "mailto:") {
		return true
	}
	host := dedup.Domain(raw)
	if host == "" {
		return true
	}
	if host == "docs.google.com" && strings.Contains(raw, "/forms") {
		return true
	}
	for _, h := range suspiciousHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
