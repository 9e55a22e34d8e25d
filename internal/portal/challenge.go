package portal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/logging"
)

// Challenge starts a login attempt. Every call is independent: a fresh jar,
// a fresh captcha.
func (c *Client) Challenge(ctx context.Context) (*Challenge, error) {
	jar := Jar{}

	first, err := c.get(ctx, "challenge", c.profile.LoginURL, jar, "")
	if err != nil {
		return nil, err
	}
	loginPage, _, err := c.follow(ctx, "challenge", first, jar)
	if errors.Is(err, ErrRedirectLoop) {
		return nil, &TransportError{Op: "challenge", URL: c.profile.LoginURL, Err: err}
	}
	if err != nil {
		return nil, err
	}
	if err := expectOK("challenge", loginPage); err != nil {
		return nil, err
	}

	html, err := loginPage.text()
	if err != nil {
		return nil, err
	}
	form, err := parseLoginPage(html, loginPage.URL, c.profile)
	if err != nil {
		return nil, err
	}

	challenge := &Challenge{
		Cookies:      jar,
		HiddenFields: form.hidden,
		LoginURL:     form.action,
	}

	if form.captchaSrc != "" {
		image, err := c.get(ctx, "captcha", form.captchaSrc, jar, loginPage.URL)
		if err != nil {
			return nil, err
		}
		if err := expectOK("captcha", image); err != nil {
			return nil, err
		}
		challenge.CaptchaImage = image.Body
		challenge.CaptchaMIME = mimetype.Detect(image.Body).String()
	}

	c.logger.Info("Challenge issued",
		logging.CookieNames(jar),
		zap.Int("hidden_fields", len(form.hidden)),
		zap.Bool("captcha", challenge.CaptchaImage != nil),
	)
	return challenge, nil
}

type loginForm struct {
	hidden     map[string]string
	action     string
	captchaSrc string
}

// parseLoginPage reads hidden inputs, the absolute form action and the
// absolute captcha source out of the login page.
func parseLoginPage(html, pageURL string, profile Profile) (*loginForm, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse login page: %w", err)
	}

	form := &loginForm{hidden: make(map[string]string)}
	doc.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		form.hidden[name] = s.AttrOr("value", "")
	})

	captcha := doc.Find(profile.CaptchaSelector).First()
	src, ok := captcha.Attr("src")
	if !ok {
		src = captcha.Find("img").First().AttrOr("src", "")
	}
	if src = strings.TrimSpace(src); src != "" {
		if form.captchaSrc, err = resolve(pageURL, src); err != nil {
			return nil, fmt.Errorf("captcha source %q: %w", src, err)
		}
	}

	// Prefer the form that holds the username input.
	loginForm := doc.Find(fmt.Sprintf(`input[name="%s"]`, profile.Fields.Username)).Closest("form")
	if loginForm.Length() == 0 {
		loginForm = doc.Find("form").First()
	}
	action := strings.TrimSpace(loginForm.AttrOr("action", ""))
	if form.action, err = resolveAction(pageURL, action); err != nil {
		return nil, fmt.Errorf("form action %q: %w", action, err)
	}
	return form, nil
}

// resolveAction makes the form action absolute. A bare action keeps the
// login page's query string.
func resolveAction(pageURL, action string) (string, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	if action == "" {
		return page.String(), nil
	}
	ref, err := url.Parse(action)
	if err != nil {
		return "", err
	}
	resolved := page.ResolveReference(ref)
	if resolved.RawQuery == "" && !strings.Contains(action, "?") {
		resolved.RawQuery = page.RawQuery
	}
	return resolved.String(), nil
}
