package email

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

func TestParseSinglePart(t *testing.T) {
	raw := crlf(`From: "Prize Team" <winner@example.com>
To: alice@example.org, bob@example.org
Subject: You are a WINNER
Content-Type: text/plain; charset=utf-8

Claim your free prize now!
`)

	email, err := NewParser().Parse(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "winner@example.com", email.From)
	assert.Equal(t, []string{"alice@example.org", "bob@example.org"}, email.To)
	assert.Equal(t, "You are a WINNER", email.Subject)
	assert.Equal(t, "Claim your free prize now!", email.Body)
	assert.False(t, email.HTML)
	assert.Equal(t, "You are a WINNER Claim your free prize now!", email.Text())
}

func TestParseEncodedSubjectAndBody(t *testing.T) {
	raw := crlf(`From: a@example.com
Subject: =?UTF-8?B?Q2Fmw6kgbWVldGluZw==?=
Content-Type: text/plain; charset=utf-8
Content-Transfer-Encoding: quoted-printable

Caf=C3=A9 at noon
`)

	email, err := NewParser().Parse(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "Café meeting", email.Subject)
	assert.Equal(t, "Café at noon", email.Body)
}

func TestParsePrefersPlainText(t *testing.T) {
	raw := crlf(`From: a@example.com
Subject: Report
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="b1"

--b1
Content-Type: text/html; charset=utf-8

<p>html version</p>
--b1
Content-Type: text/plain; charset=utf-8

plain version
--b1--
`)

	email, err := NewParser().Parse(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "plain version", email.Body)
	assert.False(t, email.HTML)
}

func TestParseHTMLFallbackAndAttachments(t *testing.T) {
	raw := crlf(`From: a@example.com
Subject: Offer
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="outer"

--outer
Content-Type: text/html; charset=utf-8

<html><head><style>p {color: red}</style></head><body><p>Click&nbsp;<b>now</b></p><script>track()</script></body></html>
--outer
Content-Type: application/pdf
Content-Disposition: attachment; filename="invoice.pdf"
Content-Transfer-Encoding: base64

aGVsbG8=
--outer--
`)

	email, err := NewParser().Parse(strings.NewReader(raw))
	require.NoError(t, err)
	assert.True(t, email.HTML)
	assert.Equal(t, "Click now", email.Body)

	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "invoice.pdf", email.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", email.Attachments[0].ContentType)
	assert.Equal(t, int64(5), email.Attachments[0].Size)
}

func TestParseMaxBodyBytes(t *testing.T) {
	raw := crlf(`Subject: long

0123456789abcdef
`)

	p := &Parser{MaxBodyBytes: 4}
	email, err := p.Parse(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "0123", email.Body)
}

func TestParseFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "msg.eml")
	require.NoError(t, os.WriteFile(path, []byte(crlf("Subject: hi\n\nbody text\n")), 0644))

	email, err := NewParser().ParseFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hi body text", email.Text())

	_, err = NewParser().ParseFromFile(filepath.Join(t.TempDir(), "missing.eml"))
	assert.Error(t, err)
}

func TestTextWithoutSubject(t *testing.T) {
	e := &Email{Body: "just the body"}
	assert.Equal(t, "just the body", e.Text())
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{"plain", "hello", "hello"},
		{"tags", "<div>one</div><div>two</div>", "one two"},
		{"entities", "fish &amp; chips", "fish & chips"},
		{"script skipped", "<script>var x = 1;</script>visible", "visible"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTMLToText(tt.html))
		})
	}
}
