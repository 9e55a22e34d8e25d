package portal

import (
	"regexp"
	"strings"
)

// tooltipPattern matches infraTooltipMostrar('title', 'description') with
// either quote style.
var tooltipPattern = regexp.MustCompile(`infraTooltipMostrar\s*\(\s*['"](.*?)['"]\s*,\s*['"](.*?)['"]\s*\)`)

// parseTooltip returns the case type and description carried by an anchor's
// onmouseover handler.
func parseTooltip(handler string) (kind, description string, ok bool) {
	m := tooltipPattern.FindStringSubmatch(handler)
	if m == nil {
		return "", "", false
	}
	return collapse(m[1]), collapse(m[2]), true
}

// describe picks the description for an anchor: the tooltip's second
// argument, else a title attribute that is not just the protocol again.
func describe(handler, title, protocol string) (kind, description string) {
	kind, description, _ = parseTooltip(handler)
	if description == "" {
		if t := collapse(title); t != "" && t != protocol {
			description = t
		}
	}
	return kind, description
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
