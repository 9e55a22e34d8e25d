package portal

import (
	"errors"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Legacy is the single-byte charset the Portal's forms expect.
var Legacy encoding.Encoding = charmap.Windows1252

const upperhex = "0123456789ABCDEF"

// Field is one form pair. Order is preserved when encoding.
type Field struct {
	Name  string
	Value string
}

// EncodeForm renders fields as an application/x-www-form-urlencoded body in
// the legacy charset.
func EncodeForm(fields []Field) (string, error) {
	var sb strings.Builder
	for i, f := range fields {
		name, err := EscapeValue(f.Name)
		if err != nil {
			return "", err
		}
		value, err := EscapeValue(f.Value)
		if err != nil {
			return "", fmt.Errorf("field %s: %w", f.Name, err)
		}
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(value)
	}
	return sb.String(), nil
}

// EscapeValue transcodes s to the legacy charset and percent-escapes every
// byte outside [A-Za-z0-9-_.~]. Space becomes '+'.
func EscapeValue(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	raw, err := Legacy.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return "", &EncodingError{Charset: "windows-1252", Err: err}
	}

	var sb strings.Builder
	sb.Grow(len(raw) * 3)
	for _, b := range raw {
		switch {
		case unreserved(b):
			sb.WriteByte(b)
		case b == ' ':
			sb.WriteByte('+')
		default:
			sb.WriteByte('%')
			sb.WriteByte(upperhex[b>>4])
			sb.WriteByte(upperhex[b&0x0F])
		}
	}
	return sb.String(), nil
}

// UnescapeValue reverses EscapeValue.
func UnescapeValue(s string) (string, error) {
	raw := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '+':
			raw = append(raw, ' ')
		case '%':
			if i+2 >= len(s) {
				return "", fmt.Errorf("truncated escape at offset %d", i)
			}
			hi, ok1 := unhex(s[i+1])
			lo, ok2 := unhex(s[i+2])
			if !ok1 || !ok2 {
				return "", fmt.Errorf("invalid escape %q", s[i:i+3])
			}
			raw = append(raw, hi<<4|lo)
			i += 2
		default:
			raw = append(raw, c)
		}
	}
	out, err := Legacy.NewDecoder().Bytes(raw)
	if err != nil {
		return "", &EncodingError{Charset: "windows-1252", Err: err}
	}
	return string(out), nil
}

// Decode converts a Portal response body to a Go string. UTF-8 is used only
// when the content type declares it, and a body that is not valid UTF-8 is an
// EncodingError. With no declaration the legacy charset applies.
func Decode(body []byte, contentType string) (string, error) {
	label := declaredCharset(contentType)
	switch label {
	case "":
		return decodeWith(Legacy, "windows-1252", body)
	case "utf-8", "utf8":
		if !utf8.Valid(body) {
			return "", &EncodingError{Charset: "utf-8", Err: errors.New("body is not valid utf-8")}
		}
		return string(body), nil
	}

	if enc, name := charset.Lookup(label); enc != nil {
		return decodeWith(enc, name, body)
	}

	// Unknown label: sniff before giving up.
	result, err := chardet.NewTextDetector().DetectBest(body)
	if err != nil || result == nil {
		return "", &EncodingError{Charset: label, Err: errors.New("unknown charset")}
	}
	enc, name := charset.Lookup(result.Charset)
	if enc == nil {
		return "", &EncodingError{Charset: label, Err: fmt.Errorf("unknown charset (sniffed %s)", result.Charset)}
	}
	return decodeWith(enc, name, body)
}

func decodeWith(enc encoding.Encoding, name string, body []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", &EncodingError{Charset: name, Err: err}
	}
	return string(out), nil
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Tolerate sloppy headers such as "text/html;charset=UTF-8;".
		lower := strings.ToLower(contentType)
		if idx := strings.Index(lower, "charset="); idx >= 0 {
			v := lower[idx+len("charset="):]
			if end := strings.IndexAny(v, "; "); end >= 0 {
				v = v[:end]
			}
			return strings.Trim(v, `"'`)
		}
		return ""
	}
	return strings.ToLower(strings.TrimSpace(params["charset"]))
}

func unreserved(b byte) bool {
	return 'a' <= b && b <= 'z' ||
		'A' <= b && b <= 'Z' ||
		'0' <= b && b <= '9' ||
		b == '-' || b == '_' || b == '.' || b == '~'
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}
