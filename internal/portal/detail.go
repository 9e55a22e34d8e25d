package portal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pmos-desktop/sei-gateway/internal/infrastructure/logging"
)

// Detail opens one case and returns its document tree and history. An
// expired session gets one captcha-free re-login. Tree and history are
// fetched concurrently; a failure in either is logged and leaves that list
// empty.
func (c *Client) Detail(ctx context.Context, req DetailRequest) (*ProcessDetail, error) {
	if strings.TrimSpace(req.Link) == "" {
		return nil, ErrMissingLink
	}
	jar := req.Cookies.Clone()

	resp, err := c.get(ctx, "detail", req.Link, jar, "")
	if err != nil {
		return nil, err
	}
	if c.toLogin(resp) {
		c.logger.Info("Portal session expired, re-authenticating", logging.User(req.Credentials.Username))
		if err := c.relogin(ctx, req.Credentials, jar); err != nil {
			return nil, err
		}
		if resp, err = c.get(ctx, "detail", req.Link, jar, ""); err != nil {
			return nil, err
		}
		if c.toLogin(resp) {
			return nil, &AuthRejectedError{Message: GenericLoginFailure}
		}
	}

	resp, hops, err := c.follow(ctx, "detail", resp, jar)
	if err != nil {
		if errors.Is(err, ErrRedirectLoop) {
			c.logger.Warn("Detail redirect limit exceeded", zap.Int("hops", hops), zap.Bool("redirect_loop", true))
			return nil, &AuthRejectedError{Message: GenericLoginFailure, Cause: err}
		}
		return nil, err
	}
	if err := expectOK("detail", resp); err != nil {
		return nil, err
	}
	html, err := resp.text()
	if err != nil {
		return nil, err
	}
	if rejected := c.rejection(html); rejected != nil {
		return nil, rejected
	}

	detail := &ProcessDetail{Tree: []TreeNode{}, History: []Movement{}}
	caseID := c.caseID(req.Link, resp.URL)

	// Each sub-fetch works on its own copy of the jar.
	var g errgroup.Group
	g.Go(func() error {
		tree, err := c.tree(ctx, html, resp.URL, jar.Clone())
		if err != nil {
			c.logger.Warn("Document tree fetch failed", zap.String("link", req.Link), zap.Error(err))
			return nil
		}
		detail.Tree = tree
		return nil
	})
	g.Go(func() error {
		history, err := c.history(ctx, caseID, resp.URL, jar.Clone())
		if err != nil {
			c.logger.Warn("History fetch failed", zap.String("link", req.Link), zap.Error(err))
			return nil
		}
		detail.History = history
		return nil
	})
	_ = g.Wait()

	return detail, nil
}

// toLogin reports whether a response redirects to the login page.
func (c *Client) toLogin(p *page) bool {
	return p.redirect() && strings.Contains(p.Header.Get("Location"), c.profile.LoginPathMarker)
}

// relogin runs a fresh challenge and a captcha-free login, folding the new
// cookies into jar.
func (c *Client) relogin(ctx context.Context, creds Credentials, jar Jar) error {
	if creds.Username == "" || creds.Password == "" {
		return &AuthRejectedError{Message: GenericLoginFailure}
	}
	challenge, err := c.Challenge(ctx)
	if err != nil {
		return err
	}
	creds.CaptchaAnswer = ""
	session, err := c.Login(ctx, creds, challenge)
	if err != nil {
		return err
	}
	for k, v := range session.Cookies {
		jar[k] = v
	}
	return nil
}

func (c *Client) tree(ctx context.Context, casePage, pageURL string, jar Jar) ([]TreeNode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(casePage))
	if err != nil {
		return nil, fmt.Errorf("parse case page: %w", err)
	}
	src := strings.TrimSpace(doc.Find(c.profile.TreeFrame).First().AttrOr("src", ""))
	if src == "" {
		return []TreeNode{}, nil
	}
	treeURL := absolute(pageURL, src)

	resp, err := c.get(ctx, "tree", treeURL, jar, pageURL)
	if err != nil {
		return nil, err
	}
	if err := expectOK("tree", resp); err != nil {
		return nil, err
	}
	body, err := resp.text()
	if err != nil {
		return nil, err
	}
	return parseTree(body, treeURL, c.profile)
}

func parseTree(body, base string, profile Profile) ([]TreeNode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse tree: %w", err)
	}

	nodes := []TreeNode{}
	doc.Find(fmt.Sprintf(`a[target="%s"]`, profile.TreeLinkTarget)).Each(func(_ int, a *goquery.Selection) {
		title := collapse(a.Text())
		if title == "" {
			return
		}
		node := TreeNode{Title: title, Kind: KindDocument}
		if href := strings.TrimSpace(a.AttrOr("href", "")); href != "" {
			node.Link = absolute(base, href)
		}
		if strings.Contains(a.Find("img").AttrOr("src", ""), profile.FolderIconHint) {
			node.Kind = KindFolder
		}
		nodes = append(nodes, node)
	})
	return nodes, nil
}

// caseID reads the case identifier from the link, falling back to the
// landing URL.
func (c *Client) caseID(candidates ...string) string {
	for _, raw := range candidates {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if id := u.Query().Get(c.profile.CaseIDParam); id != "" {
			return id
		}
	}
	return ""
}

func (c *Client) history(ctx context.Context, caseID, referer string, jar Jar) ([]Movement, error) {
	if caseID == "" || c.profile.HistoryURL == "" {
		return []Movement{}, nil
	}
	historyURL := fmt.Sprintf(c.profile.HistoryURL, url.QueryEscape(caseID))

	resp, err := c.get(ctx, "history", historyURL, jar, referer)
	if err != nil {
		return nil, err
	}
	if err := expectOK("history", resp); err != nil {
		return nil, err
	}
	body, err := resp.text()
	if err != nil {
		return nil, err
	}
	return parseHistory(body)
}

func parseHistory(body string) ([]Movement, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}

	movements := []Movement{}
	doc.Find("table.infraTable tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 3 {
			return
		}
		// Wider tables put the user column before the description.
		movements = append(movements, Movement{
			Date:        collapse(cells.Eq(0).Text()),
			Unit:        collapse(cells.Eq(1).Text()),
			Description: collapse(cells.Last().Text()),
		})
	})
	return movements, nil
}
