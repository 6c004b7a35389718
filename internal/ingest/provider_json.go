package ingest

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/david/signal-desk/internal/models"
)

const KindJSONFeed = "json_feed"

// JSONFeedProvider reads a JSON job feed: one GET per query, returning either
// a bare array of jobs or an object with a "jobs" (or "results") array.
type JSONFeedProvider struct {
	cfg     ProviderConfig
	fetcher *Fetcher
}

func NewJSONFeedProvider(cfg ProviderConfig, fetcher *Fetcher) *JSONFeedProvider {
	return &JSONFeedProvider{cfg: cfg, fetcher: fetcher}
}

func (p *JSONFeedProvider) Name() string { return p.cfg.ID }

// IsConfigured requires a base URL, and an API key whenever a key header is set.
func (p *JSONFeedProvider) IsConfigured() bool {
	if strings.TrimSpace(p.cfg.BaseURL) == "" {
		return false
	}
	return p.cfg.APIKeyHeader == "" || strings.TrimSpace(p.cfg.APIKey) != ""
}

func (p *JSONFeedProvider) FetchJobs(ctx context.Context, queries []string) ([]models.RawSignal, error) {
	if len(queries) == 0 {
		queries = []string{""}
	}
	headers := map[string]string{}
	if p.cfg.APIKeyHeader != "" {
		headers[p.cfg.APIKeyHeader] = p.cfg.APIKey
	}

	seen := make(map[string]struct{})
	var out []models.RawSignal
	for _, q := range queries {
		target, err := p.queryURL(q)
		if err != nil {
			return nil, err
		}
		body, err := p.fetcher.Get(ctx, target, headers)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", q, err)
		}
		items, err := decodeFeed(body)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", q, err)
		}
		for _, it := range items {
			raw := it.toRaw(p.cfg.ID)
			if raw.ExternalID != "" {
				if _, dup := seen[raw.ExternalID]; dup {
					continue
				}
				seen[raw.ExternalID] = struct{}{}
			}
			out = append(out, raw)
		}
	}
	return out, nil
}

func (p *JSONFeedProvider) queryURL(q string) (string, error) {
	u, err := url.Parse(p.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	if q = strings.TrimSpace(q); q != "" {
		param := p.cfg.QueryParam
		if param == "" {
			param = "q"
		}
		v := u.Query()
		v.Set(param, q)
		u.RawQuery = v.Encode()
	}
	return u.String(), nil
}

type feedItem struct {
	ID             flexString `json:"id"`
	Title          string     `json:"title"`
	Company        string     `json:"company"`
	Description    string     `json:"description"`
	Location       string     `json:"location"`
	LocationType   string     `json:"location_type"`
	ApplyURL       string     `json:"apply_url"`
	URL            string     `json:"url"`
	PostedAt       flexTime   `json:"posted_at"`
	ExpiresAt      flexTime   `json:"expires_at"`
	SalaryMin      *float64   `json:"salary_min"`
	SalaryMax      *float64   `json:"salary_max"`
	SalaryText     string     `json:"salary_text"`
	RecruiterName  string     `json:"recruiter_name"`
	RecruiterEmail string     `json:"recruiter_email"`
	RecruiterPhone string     `json:"recruiter_phone"`

	raw json.RawMessage
}

func decodeFeed(body []byte) ([]feedItem, error) {
	body = bytes.TrimSpace(body)
	var msgs []json.RawMessage
	if len(body) > 0 && body[0] == '{' {
		var env struct {
			Jobs    []json.RawMessage `json:"jobs"`
			Results []json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode feed: %w", err)
		}
		msgs = env.Jobs
		if msgs == nil {
			msgs = env.Results
		}
	} else if err := json.Unmarshal(body, &msgs); err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}

	items := make([]feedItem, 0, len(msgs))
	for _, m := range msgs {
		var it feedItem
		if err := json.Unmarshal(m, &it); err != nil {
			// one malformed job does not spoil the batch
			continue
		}
		it.raw = m
		items = append(items, it)
	}
	return items, nil
}

func (it feedItem) toRaw(source string) models.RawSignal {
	apply := strings.TrimSpace(it.ApplyURL)
	if apply == "" {
		apply = strings.TrimSpace(it.URL)
	}
	ext := strings.TrimSpace(string(it.ID))
	if ext == "" && apply != "" {
		ext = urlID(apply)
	}
	return models.RawSignal{
		Title:          strings.TrimSpace(it.Title),
		Company:        strings.TrimSpace(it.Company),
		Description:    it.Description,
		Location:       strings.TrimSpace(it.Location),
		LocationType:   strings.ToLower(strings.TrimSpace(it.LocationType)),
		ApplyURL:       apply,
		SourceURL:      strings.TrimSpace(it.URL),
		PostedAt:       it.PostedAt.Ptr(),
		ExpiresAt:      it.ExpiresAt.Ptr(),
		SalaryMin:      it.SalaryMin,
		SalaryMax:      it.SalaryMax,
		SalaryText:     strings.TrimSpace(it.SalaryText),
		RecruiterName:  strings.TrimSpace(it.RecruiterName),
		RecruiterEmail: strings.TrimSpace(it.RecruiterEmail),
		RecruiterPhone: strings.TrimSpace(it.RecruiterPhone),
		Source:         source,
		ExternalID:     ext,
		RawPayload:     it.raw,
	}
}

// urlID derives a stable external id from a canonicalized URL.
func urlID(raw string) string {
	sum := sha1.Sum([]byte(CanonicalizeURL(raw)))
	return hex.EncodeToString(sum[:])
}

// CanonicalizeURL removes common tracking parameters to ensure stable URLs.
func CanonicalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return rawURL
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		if strings.HasPrefix(k, "utm_") {
			q.Del(k)
		}
	}
	for _, p := range []string{"fbclid", "gclid", "mc_cid", "mc_eid", "ref", "src", "source", "trk"} {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(string(b))
	return nil
}

// flexTime accepts RFC3339, a bare date, or unix seconds.
type flexTime struct {
	t *time.Time
}

var feedTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] != '"' {
		secs, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return nil
		}
		t := time.Unix(secs, 0).UTC()
		f.t = &t
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			f.t = &t
			return nil
		}
	}
	// unparseable dates are treated as absent
	return nil
}

func (f flexTime) Ptr() *time.Time {
	return f.t
}
