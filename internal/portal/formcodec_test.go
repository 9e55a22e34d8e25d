package portal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestEscapeValue(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "accented name", input: "João Carlos", expected: "Jo%E3o+Carlos"},
		{name: "unreserved kept", input: "a-b_c.d~e", expected: "a-b_c.d~e"},
		{name: "reserved escaped", input: "a&b=c/d", expected: "a%26b%3Dc%2Fd"},
		{name: "cedilla and tilde", input: "Informações", expected: "Informa%E7%F5es"},
		{name: "euro sign maps to 0x80", input: "€", expected: "%80"},
		{name: "empty", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EscapeValue(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEscapeValueUnmappable(t *testing.T) {
	_, err := EscapeValue("日本")
	require.Error(t, err)

	var encErr *EncodingError
	assert.ErrorAs(t, err, &encErr)
}

func TestEscapeRoundTrip(t *testing.T) {
	inputs := []string{
		"João Carlos",
		"Ação Pública nº 12/2024",
		"senha com espaço & símbolos %+",
		"ÀÉÎÕÜ çñ ß",
	}
	for _, in := range inputs {
		escaped, err := EscapeValue(in)
		require.NoError(t, err)
		back, err := UnescapeValue(escaped)
		require.NoError(t, err)
		assert.Equal(t, in, back)
	}
}

func TestUnescapeValueRejectsBadEscapes(t *testing.T) {
	_, err := UnescapeValue("abc%G1")
	assert.Error(t, err)

	_, err = UnescapeValue("abc%4")
	assert.Error(t, err)
}

func TestEncodeForm(t *testing.T) {
	body, err := EncodeForm([]Field{
		{Name: "txtUsuario", Value: "joão"},
		{Name: "selOrgao", Value: "0"},
		{Name: "sbmLogin", Value: "Acessar"},
	})
	require.NoError(t, err)
	assert.Equal(t, "txtUsuario=jo%E3o&selOrgao=0&sbmLogin=Acessar", body)

	_, err = EncodeForm([]Field{{Name: "x", Value: "✓"}})
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	legacy, err := charmap.Windows1252.NewEncoder().String("Sessão expirada")
	require.NoError(t, err)

	tests := []struct {
		name        string
		body        []byte
		contentType string
		expected    string
	}{
		{name: "no charset uses legacy", body: []byte(legacy), contentType: "text/html", expected: "Sessão expirada"},
		{name: "no content type", body: []byte(legacy), contentType: "", expected: "Sessão expirada"},
		{name: "declared iso-8859-1", body: []byte(legacy), contentType: "text/html; charset=ISO-8859-1", expected: "Sessão expirada"},
		{name: "declared utf-8", body: []byte("Sessão expirada"), contentType: "text/html; charset=UTF-8", expected: "Sessão expirada"},
		{name: "sloppy header", body: []byte("Sessão"), contentType: "text/html;charset=utf-8;;", expected: "Sessão"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.body, tt.contentType)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	legacy, err := charmap.Windows1252.NewEncoder().String("Sessão")
	require.NoError(t, err)

	_, err = Decode([]byte(legacy), "text/html; charset=UTF-8")

	var encErr *EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, "utf-8", encErr.Charset)
}

func TestDecodeUTF8OnlyWhenDeclared(t *testing.T) {
	// UTF-8 bytes read as Windows-1252 turn into mojibake.
	got, err := Decode([]byte("ã"), "text/html")
	require.NoError(t, err)
	assert.Equal(t, "Ã£", got)
}
