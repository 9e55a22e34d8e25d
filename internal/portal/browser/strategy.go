// Package browser drives a headless Chrome through the Portal login form.
// It is the fallback engine for deployments where replaying the form over
// plain HTTP stops working; everything except the login itself is delegated
// to the HTTP engine.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/logging"
	"github.com/pmos-desktop/sei-gateway/internal/portal"
)

// Config controls how Chrome is reached.
type Config struct {
	// ControlURL attaches to an already running browser when set.
	ControlURL        string
	Bin               string
	Headless          bool
	NavigationTimeout time.Duration
}

// Strategy implements portal.Engine with a browser-driven login.
type Strategy struct {
	http   *portal.Client
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

var _ portal.Engine = (*Strategy)(nil)

// New creates the strategy. Chrome is started lazily on first login.
func New(httpEngine *portal.Client, cfg Config) *Strategy {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	return &Strategy{http: httpEngine, cfg: cfg, logger: zap.NewNop()}
}

// WithLogger attaches a logger.
func (s *Strategy) WithLogger(logger *zap.Logger) *Strategy {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Challenge delegates to the HTTP engine.
func (s *Strategy) Challenge(ctx context.Context) (*portal.Challenge, error) {
	return s.http.Challenge(ctx)
}

// Detail delegates to the HTTP engine.
func (s *Strategy) Detail(ctx context.Context, req portal.DetailRequest) (*portal.ProcessDetail, error) {
	return s.http.Detail(ctx, req)
}

// Authenticate fills and submits the login form in an incognito page
// seeded with the challenge cookies, then extracts the listing from the
// rendered page.
func (s *Strategy) Authenticate(ctx context.Context, creds portal.Credentials, challenge *portal.Challenge) (*portal.Listing, error) {
	profile := s.http.Profile()
	loginURL := profile.LoginURL
	var seed portal.Jar
	if challenge != nil {
		seed = challenge.Cookies
		if challenge.LoginURL != "" {
			loginURL = challenge.LoginURL
		}
	}

	browser, err := s.ensureStarted(ctx)
	if err != nil {
		return nil, s.transport("launch", loginURL, err)
	}
	incognito, err := browser.Incognito()
	if err != nil {
		return nil, s.transport("incognito", loginURL, err)
	}
	defer incognito.Close()

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, s.transport("page", loginURL, err)
	}
	page = page.Context(ctx)

	if len(seed) > 0 {
		params := make([]*proto.NetworkCookieParam, 0, len(seed))
		for name, value := range seed {
			params = append(params, &proto.NetworkCookieParam{Name: name, Value: value, URL: loginURL})
		}
		if err := page.SetCookies(params); err != nil {
			return nil, s.transport("cookies", loginURL, err)
		}
	}

	if err := page.Timeout(s.cfg.NavigationTimeout).Navigate(loginURL); err != nil {
		return nil, s.transport("navigate", loginURL, err)
	}
	if err := page.Timeout(s.cfg.NavigationTimeout).WaitLoad(); err != nil {
		return nil, s.transport("navigate", loginURL, err)
	}

	if err := fillLogin(page, profile, creds); err != nil {
		return nil, s.transport("fill", loginURL, err)
	}

	submit, err := page.Timeout(s.cfg.NavigationTimeout).Element(fmt.Sprintf(`[name="%s"]`, profile.Fields.Submit))
	if err != nil {
		return nil, s.transport("submit", loginURL, err)
	}
	wait := page.Timeout(s.cfg.NavigationTimeout).WaitNavigation(proto.PageLifecycleEventNameLoad)
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, s.transport("submit", loginURL, err)
	}
	wait()

	html, finalURL, err := snapshot(page)
	if err != nil {
		return nil, s.transport("snapshot", loginURL, err)
	}
	if err := s.http.CheckLanding(html); err != nil {
		return nil, err
	}

	if !s.http.HasListing(html) {
		if err := page.Timeout(s.cfg.NavigationTimeout).Navigate(profile.ListURL); err != nil {
			return nil, s.transport("list", profile.ListURL, err)
		}
		if err := page.Timeout(s.cfg.NavigationTimeout).WaitLoad(); err != nil {
			return nil, s.transport("list", profile.ListURL, err)
		}
		if html, finalURL, err = snapshot(page); err != nil {
			return nil, s.transport("snapshot", profile.ListURL, err)
		}
		if err := s.http.CheckLanding(html); err != nil {
			return nil, err
		}
	}

	jar := seed.Clone()
	cookies, err := page.Cookies([]string{finalURL, loginURL})
	if err != nil {
		return nil, s.transport("cookies", finalURL, err)
	}
	for _, c := range cookies {
		jar[c.Name] = c.Value
	}

	s.logger.Info("Browser login succeeded",
		logging.User(creds.Username),
		zap.String("final_url", finalURL),
	)
	return s.http.ListingFromSession(&portal.Session{Cookies: jar, HTML: html, FinalURL: finalURL}), nil
}

func fillLogin(page *rod.Page, profile portal.Profile, creds portal.Credentials) error {
	inputs := []struct{ name, value string }{
		{profile.Fields.Username, creds.Username},
		{profile.Fields.Password, creds.Password},
		{profile.Fields.Captcha, creds.CaptchaAnswer},
	}
	for _, in := range inputs {
		if in.value == "" {
			continue
		}
		el, err := page.Element(fmt.Sprintf(`[name="%s"]`, in.name))
		if err != nil {
			return fmt.Errorf("field %s: %w", in.name, err)
		}
		if err := el.Input(in.value); err != nil {
			return fmt.Errorf("field %s: %w", in.name, err)
		}
	}

	org := creds.OrgCode
	if org == "" {
		return nil
	}
	has, sel, err := page.Has(fmt.Sprintf(`select[name="%s"]`, profile.Fields.Org))
	if err != nil || !has {
		return err
	}
	return sel.Select([]string{fmt.Sprintf(`option[value="%s"]`, org)}, true, rod.SelectorTypeCSSSector)
}

func snapshot(page *rod.Page) (html, finalURL string, err error) {
	if html, err = page.HTML(); err != nil {
		return "", "", err
	}
	info, err := page.Info()
	if err != nil {
		return "", "", err
	}
	return html, info.URL, nil
}

func (s *Strategy) ensureStarted(ctx context.Context) (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser != nil {
		return s.browser, nil
	}

	controlURL := s.cfg.ControlURL
	if controlURL == "" {
		launch := launcher.New().Headless(s.cfg.Headless)
		if s.cfg.Bin != "" {
			launch = launch.Bin(s.cfg.Bin)
		}
		u, err := launch.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	// The browser outlives the request that started it.
	browser := rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	s.browser = browser
	s.logger.Info("Browser connected", zap.String("control_url", controlURL))
	return browser, nil
}

// Close shuts the browser down if it was started.
func (s *Strategy) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	return err
}

func (s *Strategy) transport(op, target string, err error) error {
	s.logger.Warn("Browser step failed", zap.String("op", op), zap.Error(err))
	return &portal.TransportError{
		Op:      "browser " + op,
		URL:     target,
		Timeout: errors.Is(err, context.DeadlineExceeded),
		Err:     err,
	}
}
