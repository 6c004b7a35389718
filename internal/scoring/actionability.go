package scoring

import (
	"github.com/david/signal-desk/internal/classify"
	"github.com/david/signal-desk/internal/models"
)

const (
	minPlaceableHourly = 30.0
	maxPlaceableHourly = 150.0
	lowRealness        = 40
)

// antiC2CPatterns is third-party blocking language. It is wider than the
// classifier's NO C2C directive, so a C2C-typed record can still carry it.
var antiC2CPatterns = compileAll(
	`\bno\s+(?:c2c|corp[\s-]*(?:to|2)[\s-]*corp)\b`,
	`\bc2c\s+(?:is\s+)?not\s+(?:allowed|accepted|considered|available)\b`,
	`\bno\s+third[\s-]*part(?:y|ies)\b`,
	`\bthird[\s-]*part(?:y|ies)\s+(?:candidates\s+)?(?:not\s+(?:accepted|considered)|need\s+not\s+apply)\b`,
	`\b(?:vendors|agencies|recruiters)\s+need\s+not\s+apply\b`,
	`\bno\s+(?:vendors|agencies|subcontracting|sub[\s-]*vendors)\b`,
	`\bnot\s+open\s+to\s+(?:c2c|vendors|agencies|third[\s-]*part(?:y|ies))\b`,
)

// clientInfoPatterns finds a named end client or prime relationship.
var clientInfoPatterns = compileAll(
	`\bend[\s-]?client\b`,
	`\bour\s+client\b`,
	`\bclient\s*(?::|is\b|name\b)`,
	`\bimplementation\s+partner\b`,
	`\bprime\s+vendor\b`,
)

// Actionability estimates whether the desk can place a candidate. It reads
// the realness score and never the other way round.
type Actionability struct {
	rules []rule[actionInput]
}

type actionInput struct {
	Signal
	realness int
}

func NewActionability() *Actionability {
	return &Actionability{rules: []rule[actionInput]{
		when(20, "vendor match", func(in actionInput) bool { return in.VendorMatched }),
		when(15, "recruiter email", func(in actionInput) bool { return nonEmpty(in.RecruiterEmail) }),
		{reason: "staffing-friendly type", delta: func(in actionInput) int {
			switch in.EmploymentType {
			case models.TypeC2C, models.TypeW2_1099:
				return 10
			case models.TypeW2:
				return 8
			}
			return 0
		}},
		when(5, "hourly rate in placeable range", func(in actionInput) bool {
			h := in.HourlyMin
			if h == nil {
				h = in.HourlyMax
			}
			return h != nil && *h >= minPlaceableHourly && *h <= maxPlaceableHourly
		}),
		when(5, "specific location", func(in actionInput) bool { return IsSpecificLocation(in.Location) }),
		when(5, "confident classification", func(in actionInput) bool { return in.Confidence >= highConfidence }),
		when(3, "url alive", func(in actionInput) bool { return in.URLStatus == models.URLAlive }),
		when(3, "resolvable company domain", func(in actionInput) bool { return nonEmpty(in.CompanyDomain) }),

		when(-30, "c2c blocked by posting", func(in actionInput) bool {
			return in.EmploymentType == models.TypeC2C && countMatches(antiC2CPatterns, in.Title+"\n"+in.Description) > 0
		}),
		when(-25, "direct hire only", func(in actionInput) bool {
			return hasLabel(in.NegativeSignals, classify.LabelDirectHireOnly)
		}),
		when(-15, "full-time role", func(in actionInput) bool { return in.EmploymentType == models.TypeFullTime }),
		when(-10, "confidential company", func(in actionInput) bool { return IsConfidentialCompany(in.Company) }),
		when(-10, "no rate, client or location", func(in actionInput) bool {
			return !in.HasCompensation &&
				countMatches(clientInfoPatterns, in.Description) == 0 &&
				!IsSpecificLocation(in.Location)
		}),
		when(-10, "url dead", func(in actionInput) bool { return in.URLStatus == models.URLDead }),
		when(-8, "short description", func(in actionInput) bool { return descriptionLength(in.Description) < shortDescription }),
		when(-5, "unknown employment type", func(in actionInput) bool { return in.EmploymentType == models.TypeUnknown }),
		when(-5, "low realness", func(in actionInput) bool { return in.realness < lowRealness }),
	}}
}

// Score must be called with the realness score already computed for s.
func (a *Actionability) Score(s Signal, realness int) Result {
	return fold(a.rules, actionInput{Signal: s, realness: realness})
}
