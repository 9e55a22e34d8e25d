package portal

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

const (
	anchorSelector = "a.processoVisualizado, a.processoNaoVisualizado"

	tableRowsXPath = `//table[contains(concat(' ', normalize-space(@class), ' '), ' infraTable ')]//tr`
	tablesXPath    = `//table[contains(concat(' ', normalize-space(@class), ' '), ' infraTable ')]`
	caseLinkXPath  = `.//a[contains(concat(' ', normalize-space(@class), ' '), ' infraLinkProcesso ')]`
	anyLinkXPath   = `.//td//a[@href]`

	snippetLimit = 600
)

var (
	datePattern   = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
	snippetPolicy = bluemonday.StrictPolicy()
)

// Extract reads case records out of a listing page. The anchor layout is
// tried first and the table layout only when it yields nothing. Protocols
// are unique in the result; links are absolute against finalURL. When
// neither layout matches the list is empty and Diagnostics says why.
func Extract(body, finalURL string, profile Profile) ([]Process, Diagnostics) {
	diag := Diagnostics{Format: FormatNone, FinalURL: finalURL}
	processes := []Process{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		diag.Snippet = snippet(body)
		return processes, diag
	}
	root, err := htmlquery.Parse(strings.NewReader(body))
	if err != nil {
		diag.Snippet = snippet(body)
		return processes, diag
	}

	anchors := doc.Find(anchorSelector)
	diag.AnchorCount = anchors.Length()
	diag.TableCount = len(htmlquery.Find(root, tablesXPath))
	rows := htmlquery.Find(root, tableRowsXPath)
	diag.RowCount = len(rows)
	diag.FormPresent = doc.Find(`input[name="`+profile.Fields.Username+`"]`).Length() > 0 &&
		doc.Find(`input[name="`+profile.Fields.Password+`"]`).Length() > 0

	seen := make(map[string]struct{})
	add := func(p Process) {
		if p.Protocol == "" {
			return
		}
		if _, dup := seen[p.Protocol]; dup {
			return
		}
		seen[p.Protocol] = struct{}{}
		processes = append(processes, p)
	}

	anchors.Each(func(_ int, a *goquery.Selection) {
		if p, ok := fromAnchor(a, finalURL, profile.DefaultUnit); ok {
			add(p)
		}
	})
	if len(processes) > 0 {
		diag.Format = FormatAnchors
		return processes, diag
	}

	for _, row := range rows {
		if p, ok := fromRow(row, finalURL, profile.DefaultUnit); ok {
			add(p)
		}
	}
	if len(processes) > 0 {
		diag.Format = FormatTable
		return processes, diag
	}

	doc.Find("script,style,noscript").Remove()
	diag.Snippet = snippet(doc.Find("body").Text())
	if diag.Snippet == "" {
		diag.Snippet = snippet(body)
	}
	return processes, diag
}

func fromAnchor(a *goquery.Selection, base, unit string) (Process, bool) {
	protocol := collapse(a.Text())
	href, _ := a.Attr("href")
	if protocol == "" || strings.TrimSpace(href) == "" {
		return Process{}, false
	}

	kind, description := describe(a.AttrOr("onmouseover", ""), a.AttrOr("title", ""), protocol)
	parentText := collapse(a.Parent().Text())
	interested := collapse(strings.Replace(parentText, protocol, "", 1))

	return Process{
		Protocol:          protocol,
		Link:              absolute(base, href),
		Unit:              unit,
		InterestedParties: interested,
		Description:       description,
		Type:              kind,
		Date:              datePattern.FindString(parentText),
	}, true
}

func fromRow(row *html.Node, base, unit string) (Process, bool) {
	link := htmlquery.FindOne(row, caseLinkXPath)
	if link == nil {
		link = htmlquery.FindOne(row, anyLinkXPath)
	}
	if link == nil {
		return Process{}, false
	}
	cells := htmlquery.Find(row, "./td")
	if len(cells) < 3 {
		return Process{}, false
	}

	protocol := collapse(htmlquery.InnerText(link))
	href := htmlquery.SelectAttr(link, "href")
	if protocol == "" || strings.TrimSpace(href) == "" {
		return Process{}, false
	}

	p := Process{
		Protocol:          protocol,
		Link:              absolute(base, href),
		Unit:              unit,
		InterestedParties: collapse(htmlquery.InnerText(cells[2])),
		Date:              datePattern.FindString(htmlquery.InnerText(row)),
	}
	if len(cells) > 4 {
		p.AssignedTo = collapse(htmlquery.InnerText(cells[len(cells)-2]))
	}
	p.Type, p.Description = describe(
		htmlquery.SelectAttr(link, "onmouseover"),
		htmlquery.SelectAttr(link, "title"),
		protocol,
	)
	return p, true
}

func absolute(base, href string) string {
	href = strings.TrimSpace(href)
	if base == "" {
		return href
	}
	resolved, err := resolve(base, href)
	if err != nil {
		return href
	}
	return resolved
}

// snippet returns a short, tag-free excerpt for diagnostics.
func snippet(s string) string {
	clean := collapse(snippetPolicy.Sanitize(s))
	if utf8.RuneCountInString(clean) <= snippetLimit {
		return clean
	}
	runes := []rune(clean)
	return string(runes[:snippetLimit]) + "…"
}
