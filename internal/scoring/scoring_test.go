package scoring

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/david/signal-desk/internal/classify"
	"github.com/david/signal-desk/internal/models"
)

var fixedNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func newRealness() *Realness {
	r := NewRealness(nil)
	r.now = func() time.Time { return fixedNow }
	return r
}

func ptrTime(t time.Time) *time.Time { return &t }
func ptrFloat(f float64) *float64    { return &f }

func strongSignal() Signal {
	return Signal{
		Title:           "Senior Java Developer",
		Company:         "Acme Bank",
		Description:     strings.Repeat("Build payment services with Java and Kafka. ", 15),
		Location:        "Charlotte, NC",
		ApplyURL:        "https://acme.example/jobs/1",
		RecruiterName:   "Jane Doe",
		RecruiterEmail:  "jane@vendor.example",
		RecruiterPhone:  "555-0100",
		PostedAt:        ptrTime(fixedNow.Add(-2 * time.Hour)),
		EmploymentType:  models.TypeC2C,
		Confidence:      0.9,
		NegativeSignals: []string{},
		HasCompensation: true,
		HourlyMin:       ptrFloat(70),
		HourlyMax:       ptrFloat(80),
		URLStatus:       models.URLAlive,
		VendorMatched:   true,
		CompanyDomain:   "acme.example",
	}
}

func TestRealness_StrongSignalClampsAt100(t *testing.T) {
	res := newRealness().Score(strongSignal())
	if res.Score != 100 {
		t.Fatalf("expected 100, got %d (%v)", res.Score, res.Reasons)
	}
	if len(res.Reasons) == 0 {
		t.Fatal("expected an audit trail")
	}
}

func TestRealness_WeakSignal(t *testing.T) {
	s := Signal{
		Title:          "Developer",
		Company:        "Confidential",
		Description:    "Great role.",
		EmploymentType: models.TypeUnknown,
		URLStatus:      models.URLDead,
		NegativeSignals: []string{
			classify.LabelNoC2C, classify.LabelNo1099, classify.LabelNoW2, classify.LabelNoContractors,
		},
	}
	// 50 -25 -10 -20 -5 -8 -5 = -23, clamped
	res := newRealness().Score(s)
	if res.Score != 0 {
		t.Fatalf("expected 0, got %d (%v)", res.Score, res.Reasons)
	}
	if !containsReason(res.Reasons, "-25 negative signals") {
		t.Fatalf("expected capped negative-signal penalty, got %v", res.Reasons)
	}
}

func TestRealness_FreshnessTightestTierOnly(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want string
	}{
		{3 * time.Hour, "+10 freshness"},
		{12 * time.Hour, "+7 freshness"},
		{48 * time.Hour, "+3 freshness"},
	}
	for _, tt := range tests {
		s := Signal{Company: "Acme", PostedAt: ptrTime(fixedNow.Add(-tt.age))}
		res := newRealness().Score(s)
		n := 0
		for _, r := range res.Reasons {
			if strings.HasSuffix(r, "freshness") {
				n++
			}
		}
		if n != 1 || !containsReason(res.Reasons, tt.want) {
			t.Fatalf("age %s: expected only %q, got %v", tt.age, tt.want, res.Reasons)
		}
	}

	res := newRealness().Score(Signal{Company: "Acme", PostedAt: ptrTime(fixedNow.Add(-10 * 24 * time.Hour))})
	if !containsReason(res.Reasons, "-8 posting older than 7 days") {
		t.Fatalf("expected age penalty, got %v", res.Reasons)
	}
}

func TestRealness_FutureDatedPostingEarnsNoFreshness(t *testing.T) {
	for _, ahead := range []time.Duration{time.Minute, 3 * time.Hour, 30 * 24 * time.Hour} {
		res := newRealness().Score(Signal{Company: "Acme", PostedAt: ptrTime(fixedNow.Add(ahead))})
		for _, r := range res.Reasons {
			if strings.HasSuffix(r, "freshness") {
				t.Fatalf("posted %s ahead: unexpected %q in %v", ahead, r, res.Reasons)
			}
		}
	}
}

func TestRealness_CustomTiers(t *testing.T) {
	r := NewRealness([]FreshnessTier{{MaxAge: 48 * time.Hour, Points: 2}, {MaxAge: time.Hour, Points: 20}})
	r.now = func() time.Time { return fixedNow }
	res := r.Score(Signal{Company: "Acme", PostedAt: ptrTime(fixedNow.Add(-30 * time.Minute))})
	if !containsReason(res.Reasons, "+20 freshness") {
		t.Fatalf("expected tightest custom tier, got %v", res.Reasons)
	}
}

func TestRealness_HarvestLanguage(t *testing.T) {
	s := Signal{Company: "Acme", Description: "We are always looking for talent. Join our talent community for future opportunities."}
	res := newRealness().Score(s)
	if !containsReason(res.Reasons, "-10 harvest language") {
		t.Fatalf("expected harvest penalty, got %v", res.Reasons)
	}
}

func TestActionability_AntiC2CLanguageCostsExactly30(t *testing.T) {
	a := NewActionability()
	base := strongSignal()
	// keep both below the clamp so the difference is visible
	base.VendorMatched = false
	base.RecruiterEmail = ""
	blocked := base
	blocked.Description = base.Description + " No third party candidates."

	withBase := a.Score(base, 80)
	withBlock := a.Score(blocked, 80)

	if withBase.Score-withBlock.Score != 30 {
		t.Fatalf("expected a 30 point drop, got %d -> %d (%v)", withBase.Score, withBlock.Score, withBlock.Reasons)
	}
	if !containsReason(withBlock.Reasons, "-30 c2c blocked by posting") {
		t.Fatalf("expected c2c blocking reason, got %v", withBlock.Reasons)
	}
}

func TestActionability_AntiC2CIgnoredForOtherTypes(t *testing.T) {
	s := strongSignal()
	s.EmploymentType = models.TypeW2
	s.Description += " No C2C."
	res := NewActionability().Score(s, 80)
	if containsReason(res.Reasons, "-30 c2c blocked by posting") {
		t.Fatalf("blocking language only costs C2C records, got %v", res.Reasons)
	}
}

func TestActionability_Penalties(t *testing.T) {
	s := Signal{
		Company:         "Undisclosed",
		Description:     "FTE role.",
		Location:        "Remote",
		EmploymentType:  models.TypeFullTime,
		NegativeSignals: []string{classify.LabelDirectHireOnly},
		URLStatus:       models.URLDead,
	}
	res := NewActionability().Score(s, 20)
	for _, want := range []string{
		"-25 direct hire only",
		"-15 full-time role",
		"-10 confidential company",
		"-10 no rate, client or location",
		"-10 url dead",
		"-8 short description",
		"-5 low realness",
	} {
		if !containsReason(res.Reasons, want) {
			t.Fatalf("expected %q in %v", want, res.Reasons)
		}
	}
	if res.Score != 0 {
		t.Fatalf("expected clamp to 0, got %d", res.Score)
	}
}

func TestActionability_ClientInfoAvoidsEmptinessPenalty(t *testing.T) {
	s := Signal{Company: "Acme", Description: "End client: a regional bank.", Location: "Remote"}
	res := NewActionability().Score(s, 60)
	if containsReason(res.Reasons, "-10 no rate, client or location") {
		t.Fatalf("client info should suppress the penalty, got %v", res.Reasons)
	}
}

func TestActionability_HourlyRange(t *testing.T) {
	a := NewActionability()
	for _, tt := range []struct {
		min  *float64
		max  *float64
		want bool
	}{
		{ptrFloat(30), nil, true},
		{ptrFloat(150), nil, true},
		{ptrFloat(29.99), ptrFloat(60), false},
		{nil, ptrFloat(90), true},
		{nil, nil, false},
	} {
		res := a.Score(Signal{Company: "Acme", HourlyMin: tt.min, HourlyMax: tt.max}, 60)
		if got := containsReason(res.Reasons, "+5 hourly rate in placeable range"); got != tt.want {
			t.Fatalf("min=%v max=%v: expected %v, got %v", tt.min, tt.max, tt.want, res.Reasons)
		}
	}
}

func TestScores_AlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	types := []models.EmploymentType{models.TypeC2C, models.TypeW2, models.TypeW2_1099, models.TypeFullTime, models.TypePartTime, models.TypeContract, models.TypeUnknown}
	statuses := []models.URLStatus{models.URLAlive, models.URLDead, models.URLRedirect, models.URLUnknown, ""}
	words := []string{"", "no c2c", "always looking", "talent pool", "confidential", "日本", "\xff", strings.Repeat("a", 600)}

	r := newRealness()
	a := NewActionability()
	for i := 0; i < 2000; i++ {
		s := Signal{
			Company:         words[rng.Intn(len(words))],
			Description:     words[rng.Intn(len(words))] + words[rng.Intn(len(words))],
			Location:        words[rng.Intn(len(words))],
			RecruiterEmail:  words[rng.Intn(len(words))],
			EmploymentType:  types[rng.Intn(len(types))],
			Confidence:      rng.Float64(),
			URLStatus:       statuses[rng.Intn(len(statuses))],
			HasCompensation: rng.Intn(2) == 0,
			VendorMatched:   rng.Intn(2) == 0,
		}
		for j := rng.Intn(6); j > 0; j-- {
			s.NegativeSignals = append(s.NegativeSignals, classify.LabelNoC2C)
		}
		if rng.Intn(2) == 0 {
			s.PostedAt = ptrTime(fixedNow.Add(-time.Duration(rng.Intn(500)) * time.Hour))
		}

		rs := r.Score(s)
		as := a.Score(s, rs.Score)
		if rs.Score < 0 || rs.Score > 100 || as.Score < 0 || as.Score > 100 {
			t.Fatalf("score out of range: realness=%d actionability=%d for %+v", rs.Score, as.Score, s)
		}
	}
}

func containsReason(reasons []string, want string) bool {
	for _, r := range reasons {
		if r == want {
			return true
		}
	}
	return false
}
