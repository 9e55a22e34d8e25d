package portal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/resilience"
)

// Options tunes the outbound HTTP behaviour.
type Options struct {
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
	// RateLimit caps outbound requests per second across all users; 0 disables it.
	RateLimit float64
	// BreakerThreshold is the number of consecutive transport failures that
	// opens the circuit towards the Portal.
	BreakerThreshold uint32
	BreakerCooldown  time.Duration
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Timeout:          20 * time.Second,
		UserAgent:        "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		MaxRedirects:     5,
		BreakerThreshold: 10,
		BreakerCooldown:  30 * time.Second,
	}
}

// Observer receives per-operation measurements. monitoring.Metrics satisfies it.
type Observer interface {
	ObservePortalRequest(op string, status int, duration time.Duration)
	ObserveRedirects(op string, hops int)
	ObserveAuth(outcome string)
	ObserveExtraction(format string, records int)
}

type nopObserver struct{}

func (nopObserver) ObservePortalRequest(string, int, time.Duration) {}
func (nopObserver) ObserveRedirects(string, int)                    {}
func (nopObserver) ObserveAuth(string)                              {}
func (nopObserver) ObserveExtraction(string, int)                   {}

// Client is the HTTP-replay engine. It holds no per-user state: the shared
// resty client has no cookie jar and never follows redirects on its own.
type Client struct {
	http     *resty.Client
	limiter  *rate.Limiter
	breaker  *resilience.Breaker
	profile  Profile
	opts     Options
	logger   *zap.Logger
	observer Observer
}

// NewClient creates the engine for one Portal profile.
func NewClient(profile Profile, opts Options) *Client {
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultOptions().UserAgent
	}

	// Pooled transport only; retries stay with the caller.
	transport := retryablehttp.NewClient().HTTPClient.Transport

	restyClient := resty.New().
		SetTransport(transport).
		SetTimeout(opts.Timeout).
		SetCookieJar(nil).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		})).
		SetHeader("User-Agent", opts.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8").
		SetHeader("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	c := &Client{
		http:     restyClient,
		limiter:  limiter,
		profile:  profile,
		opts:     opts,
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	c.breaker = resilience.New("portal", resilience.Settings{
		FailureThreshold: opts.BreakerThreshold,
		Cooldown:         opts.BreakerCooldown,
		IsFailure: func(err error) bool {
			var terr *TransportError
			return errors.As(err, &terr)
		},
		OnStateChange: func(name string, from, to resilience.State) {
			c.logger.Warn("Portal circuit changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// WithLogger attaches a logger.
func (c *Client) WithLogger(logger *zap.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithObserver attaches a metrics observer.
func (c *Client) WithObserver(observer Observer) *Client {
	if observer != nil {
		c.observer = observer
	}
	return c
}

// Profile returns the Portal profile in use.
func (c *Client) Profile() Profile { return c.profile }

// page is one raw Portal response.
type page struct {
	URL    string
	Status int
	Header http.Header
	Body   []byte
}

func (p *page) text() (string, error) {
	return Decode(p.Body, p.Header.Get("Content-Type"))
}

func (p *page) redirect() bool {
	return p.Status >= 300 && p.Status < 400 && p.Header.Get("Location") != ""
}

// get issues a GET carrying the jar and merges any Set-Cookie into it.
func (c *Client) get(ctx context.Context, op, target string, jar Jar, referer string) (*page, error) {
	return c.send(ctx, op, http.MethodGet, target, jar, referer, "")
}

// postForm issues a form POST carrying the jar.
func (c *Client) postForm(ctx context.Context, op, target string, jar Jar, referer, body string) (*page, error) {
	return c.send(ctx, op, http.MethodPost, target, jar, referer, body)
}

func (c *Client) send(ctx context.Context, op, method, target string, jar Jar, referer, body string) (*page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: op, URL: target, Timeout: isTimeout(err), Err: err}
	}

	req := c.http.R().SetContext(ctx)
	if cookie := jar.Header(); cookie != "" {
		req.SetHeader("Cookie", cookie)
	}
	if referer != "" {
		req.SetHeader("Referer", referer)
	}

	start := time.Now()
	var resp *resty.Response
	err := c.breaker.Do(func() error {
		var err error
		if method == http.MethodPost {
			resp, err = req.
				SetHeader("Content-Type", "application/x-www-form-urlencoded").
				SetHeader("Origin", origin(target)).
				SetBody(body).
				Post(target)
		} else {
			resp, err = req.Get(target)
		}
		if err != nil {
			return &TransportError{Op: op, URL: target, Timeout: isTimeout(err), Err: err}
		}
		return nil
	})
	if err != nil {
		c.observer.ObservePortalRequest(op, 0, time.Since(start))
		var terr *TransportError
		if errors.As(err, &terr) {
			return nil, terr
		}
		// Circuit open or saturated.
		return nil, &TransportError{Op: op, URL: target, Err: err}
	}

	c.observer.ObservePortalRequest(op, resp.StatusCode(), time.Since(start))
	c.logger.Debug("Portal response",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("duration", time.Since(start)),
	)

	jar.Merge(resp.Cookies())
	return &page{
		URL:    target,
		Status: resp.StatusCode(),
		Header: resp.Header(),
		Body:   resp.Body(),
	}, nil
}

// follow replays 3xx responses as plain GETs with the previous URL as
// Referer. It returns the landing page and the number of hops taken; hitting
// the cap returns ErrRedirectLoop.
func (c *Client) follow(ctx context.Context, op string, current *page, jar Jar) (*page, int, error) {
	hops := 0
	for current.redirect() {
		if hops >= c.opts.MaxRedirects {
			c.observer.ObserveRedirects(op, hops)
			return current, hops, ErrRedirectLoop
		}
		next, err := resolve(current.URL, current.Header.Get("Location"))
		if err != nil {
			return nil, hops, &TransportError{Op: op, URL: current.URL, Err: fmt.Errorf("bad redirect location: %w", err)}
		}
		hops++
		current, err = c.get(ctx, op, next, jar, current.URL)
		if err != nil {
			return nil, hops, err
		}
	}
	c.observer.ObserveRedirects(op, hops)
	return current, hops, nil
}

// expectOK turns unusable statuses into transport errors.
func expectOK(op string, p *page) error {
	if p.Status >= 400 {
		return &TransportError{Op: op, URL: p.URL, Err: fmt.Errorf("unexpected status %s", strconv.Itoa(p.Status))}
	}
	return nil
}

func resolve(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}

func origin(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
