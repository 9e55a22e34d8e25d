package portal

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/logging"
)

var alertPattern = regexp.MustCompile(`alert\s*\(\s*['"](.+?)['"]\s*\)`)

// Authenticate logs in with a challenge's material and extracts the case
// listing from the landing page.
func (c *Client) Authenticate(ctx context.Context, creds Credentials, challenge *Challenge) (*Listing, error) {
	session, err := c.Login(ctx, creds, challenge)
	if err != nil {
		return nil, err
	}
	return c.listing(session), nil
}

func (c *Client) listing(session *Session) *Listing {
	processes, diagnostics := Extract(session.HTML, session.FinalURL, c.profile)
	c.observer.ObserveExtraction(diagnostics.Format, len(processes))
	if diagnostics.Format == FormatNone {
		c.logger.Warn("No case markup recognised",
			zap.String("final_url", diagnostics.FinalURL),
			zap.Int("anchors", diagnostics.AnchorCount),
			zap.Int("tables", diagnostics.TableCount),
			zap.Bool("form_present", diagnostics.FormPresent),
		)
	}
	return &Listing{Session: *session, Processes: processes, Diagnostics: diagnostics}
}

// Login posts the login form and follows the Portal's redirects by hand. The
// challenge's jar is copied, never mutated.
func (c *Client) Login(ctx context.Context, creds Credentials, challenge *Challenge) (*Session, error) {
	if challenge == nil {
		challenge = &Challenge{}
	}
	loginURL := challenge.LoginURL
	if loginURL == "" {
		loginURL = c.profile.LoginURL
	}
	jar := challenge.Cookies.Clone()

	body, err := c.loginBody(creds, challenge.HiddenFields)
	if err != nil {
		return nil, err
	}

	resp, err := c.postForm(ctx, "login", loginURL, jar, loginURL, body)
	if err != nil {
		return nil, err
	}
	landing, hops, err := c.follow(ctx, "login", resp, jar)
	if err != nil {
		return nil, c.loginFailure(creds, hops, err)
	}
	if err := expectOK("login", landing); err != nil {
		return nil, err
	}

	html, err := landing.text()
	if err != nil {
		return nil, err
	}
	if rejected := c.rejection(html); rejected != nil {
		c.observer.ObserveAuth("rejected")
		c.logger.Info("Login rejected by portal",
			logging.User(creds.Username),
			zap.String("message", rejected.Message),
		)
		return nil, rejected
	}

	finalURL := landing.URL
	if !c.hasListing(html) {
		list, err := c.get(ctx, "list", c.profile.ListURL, jar, finalURL)
		if err != nil {
			return nil, err
		}
		if list, hops, err = c.follow(ctx, "list", list, jar); err != nil {
			return nil, c.loginFailure(creds, hops, err)
		}
		if err := expectOK("list", list); err != nil {
			return nil, err
		}
		if html, err = list.text(); err != nil {
			return nil, err
		}
		if rejected := c.rejection(html); rejected != nil {
			c.observer.ObserveAuth("rejected")
			return nil, rejected
		}
		finalURL = list.URL
	}

	c.observer.ObserveAuth("success")
	c.logger.Info("Login succeeded",
		logging.User(creds.Username),
		zap.String("final_url", finalURL),
		logging.CookieNames(jar),
	)
	return &Session{Cookies: jar, HTML: html, FinalURL: finalURL}, nil
}

func (c *Client) loginFailure(creds Credentials, hops int, err error) error {
	if !errors.Is(err, ErrRedirectLoop) {
		return err
	}
	c.observer.ObserveAuth("redirect_loop")
	c.logger.Warn("Login redirect limit exceeded",
		logging.User(creds.Username),
		zap.Int("hops", hops),
		zap.Bool("redirect_loop", true),
	)
	return &AuthRejectedError{Message: GenericLoginFailure, Cause: err}
}

// loginBody builds the form body: hidden fields in name order, then the
// identity fields.
func (c *Client) loginBody(creds Credentials, hidden map[string]string) (string, error) {
	fields := c.profile.Fields

	identity := make(map[string]struct{}, 5)
	for _, name := range fields.Names() {
		identity[name] = struct{}{}
	}

	merged := make(map[string]string, len(hidden)+len(c.profile.HiddenDefaults))
	for k, v := range hidden {
		merged[k] = v
	}
	for k, v := range c.profile.HiddenDefaults {
		if merged[k] == "" {
			merged[k] = v
		}
	}

	names := make([]string, 0, len(merged))
	for k := range merged {
		if _, skip := identity[k]; !skip {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	form := make([]Field, 0, len(names)+5)
	for _, k := range names {
		form = append(form, Field{Name: k, Value: merged[k]})
	}

	org := creds.OrgCode
	if org == "" {
		org = c.profile.DefaultOrg
	}
	form = append(form,
		Field{Name: fields.Username, Value: creds.Username},
		Field{Name: fields.Password, Value: creds.Password},
		Field{Name: fields.Org, Value: org},
		Field{Name: fields.Submit, Value: c.profile.SubmitLabel},
	)
	if creds.CaptchaAnswer != "" {
		form = append(form, Field{Name: fields.Captcha, Value: creds.CaptchaAnswer})
	}

	body, err := EncodeForm(form)
	if err != nil {
		return "", fmt.Errorf("encode login form: %w", err)
	}
	return body, nil
}

// isLoginPage reports whether html still carries the login form.
func (c *Client) isLoginPage(html string) bool {
	return strings.Contains(html, c.profile.Fields.Username) &&
		strings.Contains(html, c.profile.Fields.Password)
}

func (c *Client) hasListing(html string) bool {
	for _, marker := range c.profile.ListingMarkers {
		if strings.Contains(html, marker) {
			return true
		}
	}
	return false
}

// rejection returns nil unless html is the login page, in which case it
// carries the Portal's own message when one was rendered.
func (c *Client) rejection(html string) *AuthRejectedError {
	if !c.isLoginPage(html) {
		return nil
	}
	return &AuthRejectedError{Message: rejectionMessage(html, c.profile.ErrorSelector)}
}

func rejectionMessage(html, selector string) string {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil && selector != "" {
		if msg := strings.TrimSpace(doc.Find(selector).First().Text()); msg != "" {
			return msg
		}
	}
	if m := alertPattern.FindStringSubmatch(html); m != nil {
		if msg := strings.TrimSpace(m[1]); msg != "" {
			return msg
		}
	}
	return GenericLoginFailure
}
