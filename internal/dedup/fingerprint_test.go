package dedup

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Senior Java Developer", "seniorjavadeveloper"},
		{"  ACME, Inc. ", "acmeinc"},
		{"C++ / C#", "cc"},
		{"Zürich", "zrich"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDomain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://www.Example.com/jobs/1", "example.com"},
		{"http://careers.acme.io:8080/x", "careers.acme.io"},
		{"jobs.example.org/apply", "jobs.example.org"},
		{"", ""},
		{"://", ""},
	}
	for _, tt := range tests {
		if got := Domain(tt.in); got != tt.want {
			t.Fatalf("Domain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFingerprint_IgnoresCaseAndWhitespace(t *testing.T) {
	a := Fingerprint(Fields{Title: "Senior Go Engineer", Company: "Acme", Location: "Austin, TX", Description: "Build things."})
	b := Fingerprint(Fields{Title: "  senior   GO engineer ", Company: "ACME", Location: "austin tx", Description: "build things"})
	if a != b {
		t.Fatalf("expected equal fingerprints, got %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}
}

func TestFingerprint_OnlyDescriptionPrefixCounts(t *testing.T) {
	prefix := strings.Repeat("x", descriptionPrefix)
	a := Fingerprint(Fields{Title: "Dev", Company: "Acme", Description: prefix + " tail one"})
	b := Fingerprint(Fields{Title: "Dev", Company: "Acme", Description: prefix + " a completely different tail"})
	if a != b {
		t.Fatal("changes beyond the description prefix must not alter the fingerprint")
	}

	c := Fingerprint(Fields{Title: "Dev", Company: "Acme", Description: "y" + prefix})
	if a == c {
		t.Fatal("changes inside the description prefix must alter the fingerprint")
	}
}

func TestFingerprint_ApplyURLByDomainOnly(t *testing.T) {
	a := Fingerprint(Fields{Title: "Dev", Company: "Acme", ApplyURL: "https://www.acme.com/jobs/1"})
	b := Fingerprint(Fields{Title: "Dev", Company: "Acme", ApplyURL: "https://acme.com/jobs/2?ref=x"})
	if a != b {
		t.Fatal("apply URLs on the same domain must fingerprint the same")
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	f := Fields{Title: "日本語", Company: "\xff", Description: "🚀"}
	if Fingerprint(f) != Fingerprint(f) {
		t.Fatal("fingerprint must be deterministic")
	}
}
