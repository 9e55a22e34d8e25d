package portal

import "context"

// Engine is one way of talking to the Portal. The HTTP client is the
// primary engine; a browser-driven one can stand in for Authenticate.
type Engine interface {
	Challenge(ctx context.Context) (*Challenge, error)
	Authenticate(ctx context.Context, creds Credentials, challenge *Challenge) (*Listing, error)
	Detail(ctx context.Context, req DetailRequest) (*ProcessDetail, error)
}

var _ Engine = (*Client)(nil)

// Strategy names accepted by configuration.
const (
	StrategyHTTP    = "http"
	StrategyBrowser = "browser"
)

// ListingFromSession runs the extractor over a session obtained elsewhere,
// recording the same measurements as Authenticate.
func (c *Client) ListingFromSession(session *Session) *Listing {
	return c.listing(session)
}

// CheckLanding returns an AuthRejectedError when html is still the login
// page.
func (c *Client) CheckLanding(html string) error {
	if rejected := c.rejection(html); rejected != nil {
		return rejected
	}
	return nil
}

// HasListing reports whether html carries any listing marker.
func (c *Client) HasListing(html string) bool {
	return c.hasListing(html)
}
