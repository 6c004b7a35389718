package classify

import (
	"math"
	"testing"

	"github.com/david/signal-desk/internal/models"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestExtractRate_HourlyRange(t *testing.T) {
	r := ExtractRate("$50-$80/hr")
	if r.Period != models.PeriodHour {
		t.Fatalf("expected HOUR, got %s", r.Period)
	}
	if r.Min == nil || *r.Min != 50 || r.Max == nil || *r.Max != 80 {
		t.Fatalf("expected 50-80, got %v-%v", r.Min, r.Max)
	}
	if *r.HourlyMin != 50 || *r.HourlyMax != 80 {
		t.Fatalf("expected hourly 50-80, got %v-%v", *r.HourlyMin, *r.HourlyMax)
	}
}

func TestExtractRate_AnnualK(t *testing.T) {
	r := ExtractRate("$120K-$150K/year")
	if r.Period != models.PeriodYear {
		t.Fatalf("expected YEAR, got %s", r.Period)
	}
	if !approx(*r.HourlyMin, 57.69) || !approx(*r.HourlyMax, 72.12) {
		t.Fatalf("expected ~57.69-72.12, got %v-%v", *r.HourlyMin, *r.HourlyMax)
	}
}

func TestExtractRate_NoMatch(t *testing.T) {
	r := ExtractRate("no numbers here")
	if r.RateText != nil {
		t.Fatalf("expected nil rate text, got %q", *r.RateText)
	}
	if r.Period != models.PeriodUnknown {
		t.Fatalf("expected UNKNOWN, got %s", r.Period)
	}
	if r.HasRate() {
		t.Fatal("expected HasRate=false")
	}
}

func TestExtractRate_Dialects(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		period    models.CompPeriod
		hourlyMin float64
		hourlyMax float64
	}{
		{"daily", "Rate: $400 per day", models.PeriodDay, 50, 50},
		{"weekly", "$2,000 - $2,400 a week", models.PeriodWeek, 50, 60},
		{"monthly", "$8,000/month", models.PeriodMonth, 46.15, 46.15},
		{"annual salary word", "$104,000 annually", models.PeriodYear, 50, 50},
		{"bare k", "Pay: $90k - $110k DOE", models.PeriodYear, 43.27, 52.88},
		{"hourly spelled", "paying 65 an hour on W2", models.PeriodHour, 65, 65},
		{"hourly wins over annual", "$60/hr (about $124k annually)", models.PeriodHour, 60, 60},
		{"w2 tag before rate", "Rate: W2 - $60/hr", models.PeriodHour, 60, 60},
		{"1099 tag before rate", "Pay on 1099 - $70/hr", models.PeriodHour, 70, 70},
		{"tag at start", "1099 - $70/hr", models.PeriodHour, 70, 70},
		{"bare k without dollar", "Salary 120K-150K", models.PeriodYear, 57.69, 72.12},
		{"401k is a benefit", "401k match, $55/hr on C2C", models.PeriodHour, 55, 55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ExtractRate(tt.text)
			if r.Period != tt.period {
				t.Fatalf("expected %s, got %s", tt.period, r.Period)
			}
			if !approx(*r.HourlyMin, tt.hourlyMin) || !approx(*r.HourlyMax, tt.hourlyMax) {
				t.Fatalf("expected %v-%v, got %v-%v", tt.hourlyMin, tt.hourlyMax, *r.HourlyMin, *r.HourlyMax)
			}
		})
	}
}

// Sub-1000 annual values are read as thousands even without a "k".
func TestExtractRate_AnnualShorthandScalesSmallValues(t *testing.T) {
	r := ExtractRate("$95 - $120 per year")
	if r.Period != models.PeriodYear {
		t.Fatalf("expected YEAR, got %s", r.Period)
	}
	if *r.Min != 95000 || *r.Max != 120000 {
		t.Fatalf("expected 95000-120000, got %v-%v", *r.Min, *r.Max)
	}
}

func TestExtractRate_EmptyAndUnicode(t *testing.T) {
	for _, in := range []string{"", "€€€", "\xff\xfe$", "٣٠ per hour"} {
		r := ExtractRate(in)
		if r.Period != models.PeriodUnknown {
			t.Fatalf("expected UNKNOWN for %q, got %s", in, r.Period)
		}
	}
}

func TestExtractRate_RateTextStartsAtFigure(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Rate: W2 - $60/hr", "$60/hr"},
		{"(65 an hour)", "65 an hour"},
		{"$50-$80/hr", "$50-$80/hr"},
		{"Salary 120K-150K", "120K-150K"},
	}
	for _, tt := range tests {
		r := ExtractRate(tt.in)
		if r.RateText == nil || *r.RateText != tt.want {
			t.Fatalf("ExtractRate(%q) text = %v, want %q", tt.in, r.RateText, tt.want)
		}
	}
}

func TestExtractRate_TagDigitsAreNotAmounts(t *testing.T) {
	for _, in := range []string{"W2 only", "1099 contractors welcome", "401(k) per year"} {
		r := ExtractRate(in)
		if r.HasRate() {
			t.Fatalf("ExtractRate(%q) = %q, want no rate", in, *r.RateText)
		}
	}
}

// A dollar sign keeps a figure that happens to look like a tag.
func TestExtractRate_DollarFigureLookingLikeTag(t *testing.T) {
	r := ExtractRate("$1099/month")
	if r.Period != models.PeriodMonth || *r.Min != 1099 {
		t.Fatalf("expected 1099/month, got %s %v", r.Period, r.Min)
	}
}
