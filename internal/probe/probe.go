package probe

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/david/signal-desk/internal/models"
)

const DefaultTimeout = 10 * time.Second

// Prober checks whether an apply URL still resolves to a live page. It never
// follows redirects: a 3xx is reported as REDIRECT.
type Prober struct {
	client       *http.Client
	allowPrivate bool
}

type Option func(*Prober)

// WithClient replaces the HTTP client; its redirect policy is overridden.
func WithClient(c *http.Client) Option {
	return func(p *Prober) { p.client = c }
}

// AllowPrivate permits loopback and private targets. Tests need it.
func AllowPrivate() Option {
	return func(p *Prober) { p.allowPrivate = true }
}

func New(timeout time.Duration, opts ...Option) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	p := &Prober{client: &http.Client{Timeout: timeout}}
	for _, o := range opts {
		o(p)
	}
	p.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return p
}

// Check probes rawURL with HEAD, falling back to GET when HEAD is refused.
// Failures map to a status and are never returned as errors.
func (p *Prober) Check(ctx context.Context, rawURL string) models.URLStatus {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return models.URLUnknown
	}
	if !p.allowPrivate && isPrivateHost(ctx, u.Hostname()) {
		return models.URLUnknown
	}

	status, code := p.do(ctx, http.MethodHead, u.String())
	if code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented {
		status, _ = p.do(ctx, http.MethodGet, u.String())
	}
	return status
}

func (p *Prober) do(ctx context.Context, method, target string) (models.URLStatus, int) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return models.URLUnknown, 0
	}
	req.Header.Set("User-Agent", "SignalDesk-LinkProbe/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return models.URLDead, 0
		}
		return models.URLUnknown, 0
	}
	defer resp.Body.Close()

	return Classify(resp.StatusCode), resp.StatusCode
}

// Classify maps an HTTP status code to a liveness result.
func Classify(code int) models.URLStatus {
	switch {
	case code >= 200 && code < 300:
		return models.URLAlive
	case code >= 300 && code < 400:
		return models.URLRedirect
	case code == http.StatusNotFound || code == http.StatusGone:
		return models.URLDead
	default:
		return models.URLUnknown
	}
}

func isPrivateHost(ctx context.Context, host string) bool {
	if ip := net.ParseIP(host); ip != nil {
		return isPrivateOrSpecialIP(ip)
	}
	if strings.EqualFold(host, "localhost") {
		return true
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		// resolution failures surface from the request itself
		return false
	}
	for _, a := range addrs {
		if isPrivateOrSpecialIP(a.IP) {
			return true
		}
	}
	return false
}

func isPrivateOrSpecialIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		// carrier-grade NAT
		if ip4[0] == 100 && ip4[1]&0xC0 == 64 {
			return true
		}
	}

	return false
}
