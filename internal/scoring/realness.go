package scoring

import (
	"regexp"
	"sort"
	"time"

	"github.com/david/signal-desk/internal/models"
)

// FreshnessTier awards Points to postings no older than MaxAge.
type FreshnessTier struct {
	MaxAge time.Duration `yaml:"max_age"`
	Points int           `yaml:"points"`
}

// DefaultFreshnessTiers is tightest first.
var DefaultFreshnessTiers = []FreshnessTier{
	{MaxAge: 6 * time.Hour, Points: 10},
	{MaxAge: 24 * time.Hour, Points: 7},
	{MaxAge: 72 * time.Hour, Points: 3},
}

const (
	longDescription  = 500
	shortDescription = 100
	oldPosting       = 7 * 24 * time.Hour
	highConfidence   = 0.7
	maxNegativeHit   = 25
	perNegativeHit   = 8
	harvestThreshold = 2
)

// harvestPatterns flag postings that collect resumes rather than fill a role.
var harvestPatterns = compileAll(
	`always\s+(?:looking|hiring|seeking)`,
	`talent\s+(?:pool|community|network|pipeline)`,
	`future\s+(?:opportunities|openings|roles)`,
	`not\s+(?:a\s+)?(?:current|active)\s+(?:opening|position|role)`,
	`general\s+application`,
	`multiple\s+(?:positions|openings|roles)`,
	`submit\s+your\s+(?:resume|cv)\s+(?:for\s+consideration|to\s+be\s+considered)`,
	`evergreen`,
	`various\s+(?:clients|locations)`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// Realness estimates whether a posting is genuine and fresh.
type Realness struct {
	tiers []FreshnessTier
	now   func() time.Time
	rules []rule[Signal]
}

// NewRealness builds a scorer; nil or empty tiers fall back to the defaults.
func NewRealness(tiers []FreshnessTier) *Realness {
	if len(tiers) == 0 {
		tiers = DefaultFreshnessTiers
	}
	sorted := append([]FreshnessTier(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MaxAge < sorted[j].MaxAge })

	r := &Realness{tiers: sorted, now: time.Now}
	r.rules = []rule[Signal]{
		when(15, "recruiter email", func(s Signal) bool { return nonEmpty(s.RecruiterEmail) }),
		when(5, "recruiter name", func(s Signal) bool { return nonEmpty(s.RecruiterName) }),
		when(5, "recruiter phone", func(s Signal) bool { return nonEmpty(s.RecruiterPhone) }),
		when(5, "specific location", func(s Signal) bool { return IsSpecificLocation(s.Location) }),
		when(8, "compensation info", func(s Signal) bool { return s.HasCompensation }),
		when(5, "detailed description", func(s Signal) bool { return descriptionLength(s.Description) > longDescription }),
		when(5, "confident classification", func(s Signal) bool { return s.Confidence >= highConfidence }),
		{reason: "freshness", delta: r.freshness},
		when(3, "apply url present", func(s Signal) bool { return nonEmpty(s.ApplyURL) }),
		when(5, "url verified alive", func(s Signal) bool { return s.URLStatus == models.URLAlive }),

		{reason: "negative signals", delta: func(s Signal) int {
			p := perNegativeHit * len(s.NegativeSignals)
			if p > maxNegativeHit {
				p = maxNegativeHit
			}
			return -p
		}},
		when(-10, "confidential company", func(s Signal) bool { return IsConfidentialCompany(s.Company) }),
		when(-10, "harvest language", func(s Signal) bool {
			return countMatches(harvestPatterns, s.Title+"\n"+s.Description) >= harvestThreshold
		}),
		when(-20, "url dead", func(s Signal) bool { return s.URLStatus == models.URLDead }),
		when(-5, "url redirects", func(s Signal) bool { return s.URLStatus == models.URLRedirect }),
		when(-5, "no posted date", func(s Signal) bool { return s.PostedAt == nil }),
		when(-8, "posting older than 7 days", func(s Signal) bool {
			return s.PostedAt != nil && r.now().Sub(*s.PostedAt) > oldPosting
		}),
		when(-8, "short description", func(s Signal) bool { return descriptionLength(s.Description) < shortDescription }),
		when(-5, "unknown employment type", func(s Signal) bool { return s.EmploymentType == models.TypeUnknown }),
	}
	return r
}

func (r *Realness) Score(s Signal) Result {
	return fold(r.rules, s)
}

// freshness awards the tightest tier the posting falls in. A posting dated
// in the future earns nothing.
func (r *Realness) freshness(s Signal) int {
	if s.PostedAt == nil {
		return 0
	}
	age := r.now().Sub(*s.PostedAt)
	if age < 0 {
		return 0
	}
	for _, t := range r.tiers {
		if age <= t.MaxAge {
			return t.Points
		}
	}
	return 0
}
