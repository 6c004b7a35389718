package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/david/signal-desk/internal/models"
)

const (
	KindHTMLBoard   = "html_board"
	defaultMaxPages = 1
)

var postedLayouts = []string{time.RFC3339, "2006-01-02", "Jan 2, 2006", "January 2, 2006", "01/02/2006", "2 Jan 2006"}

// HTMLBoardProvider scrapes a server-rendered job board with CSS selectors.
type HTMLBoardProvider struct {
	cfg     ProviderConfig
	fetcher *Fetcher
}

func NewHTMLBoardProvider(cfg ProviderConfig, fetcher *Fetcher) (*HTMLBoardProvider, error) {
	if cfg.Selectors.Container == "" || cfg.Selectors.Title == "" {
		return nil, fmt.Errorf("selectors 'container' and 'title' are required for %s", KindHTMLBoard)
	}
	return &HTMLBoardProvider{cfg: cfg, fetcher: fetcher}, nil
}

func (p *HTMLBoardProvider) Name() string { return p.cfg.ID }

func (p *HTMLBoardProvider) IsConfigured() bool {
	u, err := url.Parse(strings.TrimSpace(p.cfg.BaseURL))
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (p *HTMLBoardProvider) FetchJobs(ctx context.Context, queries []string) ([]models.RawSignal, error) {
	if len(queries) == 0 {
		queries = []string{""}
	}
	seen := make(map[string]struct{})
	var out []models.RawSignal
	for _, q := range queries {
		start, err := p.startURL(q)
		if err != nil {
			return nil, err
		}
		items, err := p.scrape(ctx, start)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", q, err)
		}
		for _, raw := range items {
			if _, dup := seen[raw.ExternalID]; dup {
				continue
			}
			seen[raw.ExternalID] = struct{}{}
			out = append(out, raw)
		}
	}
	return out, nil
}

func (p *HTMLBoardProvider) startURL(q string) (string, error) {
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

func (p *HTMLBoardProvider) collector(host string) *colly.Collector {
	c := colly.NewCollector(
		colly.AllowedDomains(host),
		colly.UserAgent(userAgent),
		colly.DetectCharset(),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(maxBodyBytes),
	)
	c.SetClient(p.fetcher.Client())

	delay := time.Second
	if p.cfg.RateLimitRPS > 0 {
		delay = time.Duration(float64(time.Second) / p.cfg.RateLimitRPS)
	}
	_ = c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1, Delay: delay})
	c.SetRequestTimeout(p.fetcher.Client().Timeout)
	return c
}

// scrape walks list pages from start, following the next-page selector up to
// MaxPages and stopping on cycles.
func (p *HTMLBoardProvider) scrape(ctx context.Context, start string) ([]models.RawSignal, error) {
	parsed, err := url.Parse(start)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	c := p.collector(parsed.Hostname())

	maxPages := p.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}

	var (
		items    []models.RawSignal
		nextPage string
		visitErr error
	)
	sel := p.cfg.Selectors

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnHTML(sel.Container, func(e *colly.HTMLElement) {
		if raw, ok := p.extract(e); ok {
			items = append(items, raw)
		}
	})
	if p.cfg.Pagination.Next != "" {
		c.OnHTML(p.cfg.Pagination.Next, func(e *colly.HTMLElement) {
			if href := strings.TrimSpace(e.Attr("href")); href != "" && nextPage == "" {
				nextPage = e.Request.AbsoluteURL(href)
			}
		})
	}
	c.OnError(func(r *colly.Response, err error) {
		visitErr = fmt.Errorf("fetch %s: %w", r.Request.URL, err)
	})

	visited := make(map[string]bool)
	current := start
	for page := 0; page < maxPages && current != ""; page++ {
		canon := CanonicalizeURL(current)
		if visited[canon] {
			break
		}
		visited[canon] = true
		nextPage = ""

		if err := c.Visit(current); err != nil {
			if page == 0 {
				return nil, fmt.Errorf("visit failed: %w", err)
			}
			break
		}
		c.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if visitErr != nil {
			if page == 0 {
				return nil, visitErr
			}
			// later pages failing keeps what the earlier pages yielded
			break
		}
		current = nextPage
	}
	return items, nil
}

func (p *HTMLBoardProvider) extract(e *colly.HTMLElement) (models.RawSignal, bool) {
	sel := p.cfg.Selectors
	title := strings.TrimSpace(e.ChildText(sel.Title))
	if title == "" {
		return models.RawSignal{}, false
	}

	linkAttr := sel.LinkAttr
	if linkAttr == "" {
		linkAttr = "href"
	}
	var link string
	if sel.Link == "" || sel.Link == "." {
		link = strings.TrimSpace(e.Attr(linkAttr))
	} else {
		link = strings.TrimSpace(e.ChildAttr(sel.Link, linkAttr))
	}
	if link != "" {
		link = CanonicalizeURL(e.Request.AbsoluteURL(link))
	}

	raw := models.RawSignal{
		Title:       title,
		Company:     childText(e, sel.Company),
		Location:    childText(e, sel.Location),
		Description: childHTML(e.DOM, sel.Description),
		SalaryText:  childText(e, sel.Salary),
		ApplyURL:    link,
		SourceURL:   e.Request.URL.String(),
		Source:      p.cfg.ID,
	}
	if sel.Posted != "" {
		raw.PostedAt = parsePosted(e.DOM.Find(sel.Posted).First())
	}
	if sel.Email != "" {
		raw.RecruiterEmail = extractEmail(e.DOM.Find(sel.Email).First())
	}

	switch {
	case sel.ID != "" && sel.IDAttr != "":
		raw.ExternalID = strings.TrimSpace(e.ChildAttr(sel.ID, sel.IDAttr))
	case sel.ID != "":
		raw.ExternalID = childText(e, sel.ID)
	case sel.IDAttr != "":
		raw.ExternalID = strings.TrimSpace(e.Attr(sel.IDAttr))
	}
	if raw.ExternalID == "" && link != "" {
		raw.ExternalID = urlID(link)
	}
	if raw.ExternalID == "" {
		return models.RawSignal{}, false
	}
	return raw, true
}

func childText(e *colly.HTMLElement, sel string) string {
	if sel == "" {
		return ""
	}
	return strings.TrimSpace(e.ChildText(sel))
}

func childHTML(s *goquery.Selection, sel string) string {
	if sel == "" {
		return ""
	}
	html, err := s.Find(sel).First().Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(html)
}

// parsePosted reads a datetime attribute first, then the element text.
func parsePosted(s *goquery.Selection) *time.Time {
	for _, v := range []string{s.AttrOr("datetime", ""), strings.TrimSpace(s.Text())} {
		if v == "" {
			continue
		}
		for _, layout := range postedLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}

func extractEmail(s *goquery.Selection) string {
	if href, ok := s.Attr("href"); ok && strings.HasPrefix(strings.ToLower(href), "mailto:") {
		addr := href[len("mailto:"):]
		if i := strings.IndexByte(addr, '?'); i >= 0 {
			addr = addr[:i]
		}
		return strings.TrimSpace(addr)
	}
	text := strings.TrimSpace(s.Text())
	if strings.Contains(text, "@") {
		return text
	}
	return ""
}
