package classify

import (
	"math"
	"regexp"

	"github.com/david/signal-desk/internal/models"
)

// Negative-signal labels recorded when a blocking directive is found.
const (
	LabelNoC2C          = "NO C2C"
	LabelW2Only         = "W2 ONLY"
	LabelNo1099         = "NO 1099"
	LabelNoW2           = "NO W2"
	LabelDirectHireOnly = "DIRECT HIRE ONLY"
	LabelNoContractors  = "NO CONTRACTORS"
)

const (
	// unknownCeiling is the best score at or below which the result is UNKNOWN.
	unknownCeiling = 0.3
	// mergeFloor is the score both C2C and W2 must exceed to merge into W2_1099.
	mergeFloor      = 0.5
	confidenceScale = 1.5
	w2OnlyWeight    = 1.0
)

// Result is the outcome of employment-type classification.
type Result struct {
	Type            models.EmploymentType `json:"type"`
	Confidence      float64               `json:"confidence"`
	MatchedKeywords []string              `json:"matched_keywords"`
	NegativeSignals []string              `json:"negative_signals"`
}

type negativeRule struct {
	re     *regexp.Regexp
	blocks []models.EmploymentType
	label  string
}

type positiveRule struct {
	re     *regexp.Regexp
	weight float64
}

// typeOrder is both the evaluation order and the tie-break order.
var typeOrder = []models.EmploymentType{
	models.TypeC2C,
	models.TypeW2,
	models.TypeW2_1099,
	models.TypeFullTime,
	models.TypePartTime,
	models.TypeContract,
}

var negativeRules = []negativeRule{
	{
		re:     regexp.MustCompile(`(?i)\bno\s+(?:c2c|corp[\s-]*(?:to|2)[\s-]*corp)\b|\bc2c\s+(?:is\s+)?not\s+(?:allowed|accepted|considered|available|an\s+option)\b|\bnot\s+open\s+to\s+c2c\b`),
		blocks: []models.EmploymentType{models.TypeC2C},
		label:  LabelNoC2C,
	},
	{
		re:     regexp.MustCompile(`(?i)\bw[\s-]?2\s+only\b|\bonly\s+w[\s-]?2\b`),
		blocks: []models.EmploymentType{models.TypeC2C, models.TypeW2_1099},
		label:  LabelW2Only,
	},
	{
		re:     regexp.MustCompile(`(?i)\bno\s+1099\b|\b1099\s+(?:is\s+)?not\s+(?:allowed|accepted|considered)\b`),
		blocks: []models.EmploymentType{models.TypeW2_1099},
		label:  LabelNo1099,
	},
	{
		re:     regexp.MustCompile(`(?i)\bno\s+w[\s-]?2\b`),
		blocks: []models.EmploymentType{models.TypeW2, models.TypeW2_1099},
		label:  LabelNoW2,
	},
	{
		re:     regexp.MustCompile(`(?i)\bdirect[\s-]*hire\s+only\b|\b(?:full[\s-]*time|fte)\s+(?:employees?\s+)?only\b`),
		blocks: []models.EmploymentType{models.TypeC2C, models.TypeW2_1099, models.TypeContract},
		label:  LabelDirectHireOnly,
	},
	{
		re:     regexp.MustCompile(`(?i)\bno\s+(?:contractors|contract\s+roles|contracting)\b`),
		blocks: []models.EmploymentType{models.TypeC2C, models.TypeContract},
		label:  LabelNoContractors,
	},
}

var positiveRules = map[models.EmploymentType][]positiveRule{
	models.TypeC2C: {
		{regexp.MustCompile(`(?i)\bc2c\b`), 1.0},
		{regexp.MustCompile(`(?i)\bcorp[\s-]*(?:to|2)[\s-]*corp\b`), 1.0},
		{regexp.MustCompile(`(?i)\b(?:third|3rd)[\s-]*party\s+(?:candidates\s+|vendors\s+)?(?:welcome|ok|accepted)\b`), 0.6},
		{regexp.MustCompile(`(?i)\bthrough\s+your\s+(?:own\s+)?(?:employer|company|llc)\b`), 0.4},
	},
	models.TypeW2: {
		{regexp.MustCompile(`(?i)\bw-?2\b`), 1.0},
		{regexp.MustCompile(`(?i)\bw-?2\s+(?:employee|employment|position|role|contract|basis)\b`), 0.5},
		{regexp.MustCompile(`(?i)\bon\s+our\s+(?:w-?2|payroll)\b`), 0.4},
	},
	models.TypeW2_1099: {
		{regexp.MustCompile(`(?i)\bw-?2\s*(?:/|\\|or|and|&)\s*1099\b`), 1.5},
		{regexp.MustCompile(`(?i)\b1099\b`), 0.8},
		{regexp.MustCompile(`(?i)\bindependent\s+contractor\b`), 0.6},
	},
	models.TypeFullTime: {
		{regexp.MustCompile(`(?i)\bfull[\s-]*time\b`), 0.8},
		{regexp.MustCompile(`(?i)\bdirect[\s-]*hire\b`), 0.8},
		{regexp.MustCompile(`(?i)\bpermanent\b`), 0.6},
		{regexp.MustCompile(`(?i)\bfte\b`), 0.6},
		{regexp.MustCompile(`(?i)\bsalaried\b`), 0.4},
		{regexp.MustCompile(`(?i)\b401\s*\(?k\)?`), 0.3},
	},
	models.TypePartTime: {
		{regexp.MustCompile(`(?i)\bpart[\s-]*time\b`), 1.0},
		{regexp.MustCompile(`(?i)\b(?:10|15|20|25|30)\s*(?:hrs|hours)\s*(?:/|per|a)\s*(?:wk|week)\b`), 0.4},
	},
	models.TypeContract: {
		{regexp.MustCompile(`(?i)\bcontract\b`), 0.6},
		{regexp.MustCompile(`(?i)\bcontract[\s-]*to[\s-]*hire\b|\bc2h\b`), 0.8},
		{regexp.MustCompile(`(?i)\bcontractor\b`), 0.5},
		{regexp.MustCompile(`(?i)\b\d{1,2}\+?\s*(?:months?|mos?)\b`), 0.4},
		{regexp.MustCompile(`(?i)\bduration\s*:`), 0.3},
	},
}

// Classify infers the employment type of a posting from free text.
// The negative pass runs first and removes blocked types from the positive pass.
func Classify(text string) Result {
	text = sanitizeUTF8(text)

	blocked := make(map[models.EmploymentType]bool)
	var negatives []string
	for _, nr := range negativeRules {
		if !nr.re.MatchString(text) {
			continue
		}
		negatives = mergeUniqueFold(negatives, nr.label)
		for _, t := range nr.blocks {
			blocked[t] = true
		}
	}

	scores := make(map[models.EmploymentType]float64, len(typeOrder))
	keywords := make(map[models.EmploymentType][]string, len(typeOrder))
	for _, t := range typeOrder {
		if blocked[t] {
			continue
		}
		for _, pr := range positiveRules[t] {
			found := pr.re.FindAllString(text, -1)
			if len(found) == 0 {
				continue
			}
			scores[t] += pr.weight
			keywords[t] = mergeUniqueFold(keywords[t], found...)
		}
	}

	if scores[models.TypeC2C] > mergeFloor && scores[models.TypeW2] > mergeFloor && !blocked[models.TypeW2_1099] {
		merged := scores[models.TypeC2C] + scores[models.TypeW2]
		if merged > scores[models.TypeW2_1099] {
			scores[models.TypeW2_1099] = merged
		}
		keywords[models.TypeW2_1099] = mergeUniqueFold(keywords[models.TypeW2_1099], keywords[models.TypeC2C]...)
		keywords[models.TypeW2_1099] = mergeUniqueFold(keywords[models.TypeW2_1099], keywords[models.TypeW2]...)
	}

	// An explicit "W2 only" directive must not leave the result UNKNOWN.
	if hasLabel(negatives, LabelW2Only) && scores[models.TypeW2] == 0 && !blocked[models.TypeW2] {
		scores[models.TypeW2] = w2OnlyWeight
		keywords[models.TypeW2] = mergeUniqueFold(keywords[models.TypeW2], LabelW2Only)
	}

	best := models.TypeUnknown
	bestScore := 0.0
	for _, t := range typeOrder {
		if scores[t] > bestScore {
			best = t
			bestScore = scores[t]
		}
	}

	res := Result{
		Type:            best,
		Confidence:      math.Min(bestScore/confidenceScale, 1),
		MatchedKeywords: keywords[best],
		NegativeSignals: negatives,
	}
	if bestScore <= unknownCeiling {
		res.Type = models.TypeUnknown
		res.MatchedKeywords = nil
	}
	if res.MatchedKeywords == nil {
		res.MatchedKeywords = []string{}
	}
	if res.NegativeSignals == nil {
		res.NegativeSignals = []string{}
	}
	return res
}

// Contradicts reports whether any of the negative labels blocks t.
func Contradicts(t models.EmploymentType, labels []string) bool {
	for _, nr := range negativeRules {
		if !hasLabel(labels, nr.label) {
			continue
		}
		for _, b := range nr.blocks {
			if b == t {
				return true
			}
		}
	}
	return false
}

func hasLabel(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}
