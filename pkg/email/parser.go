package email

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"
)

// Email is the part of a message the classifier looks at
type Email struct {
	From        string
	To          []string
	Subject     string
	Body        string
	HTML        bool // body was derived from a text/html part
	Attachments []Attachment
	ParsedAt    time.Time
}

// Attachment represents an email attachment
type Attachment struct {
	Filename    string
	ContentType string
	Size        int64
}

// Text is what gets classified: subject and body joined by a space, the same
// way batch rows combine their subject and message columns.
func (e *Email) Text() string {
	if e.Subject == "" {
		return e.Body
	}
	return e.Subject + " " + e.Body
}

// Parser handles RFC 5322 / MIME parsing
type Parser struct {
	// MaxBodyBytes caps how much of each text part is read; 0 = unlimited
	MaxBodyBytes int64
}

// NewParser creates a new email parser
func NewParser() *Parser {
	return &Parser{}
}

// ParseFromFile parses an email from a file
func (p *Parser) ParseFromFile(path string) (*Email, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return p.Parse(file)
}

// Parse reads a message, preferring the first text/plain part and falling
// back to the text content of the first text/html part.
func (p *Parser) Parse(r io.Reader) (*Email, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("failed to parse email: %w", err)
	}
	defer mr.Close()

	email := &Email{ParsedAt: time.Now()}

	h := mr.Header
	if subject, err := h.Subject(); err == nil {
		email.Subject = subject
	} else {
		email.Subject = h.Get("Subject")
	}
	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		email.From = from[0].Address
	} else {
		email.From = strings.TrimSpace(h.Get("From"))
	}
	if to, err := h.AddressList("To"); err == nil {
		for _, addr := range to {
			email.To = append(email.To, addr.Address)
		}
	}

	var plain, htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("failed to read part: %w", err)
		}
		if part == nil {
			continue
		}

		switch ph := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := ph.ContentType()
			body, err := p.readBody(part.Body)
			if err != nil {
				return nil, fmt.Errorf("failed to read body: %w", err)
			}
			switch {
			case contentType == "text/html" && htmlBody == "":
				htmlBody = body
			case (contentType == "text/plain" || contentType == "") && plain == "":
				plain = body
			}
		case *mail.AttachmentHeader:
			filename, _ := ph.Filename()
			contentType, _, _ := ph.ContentType()
			n, _ := io.Copy(io.Discard, part.Body)
			email.Attachments = append(email.Attachments, Attachment{
				Filename:    filename,
				ContentType: contentType,
				Size:        n,
			})
		}
	}

	switch {
	case plain != "":
		email.Body = strings.TrimSpace(plain)
	case htmlBody != "":
		email.Body = HTMLToText(htmlBody)
		email.HTML = true
	}

	return email, nil
}

func (p *Parser) readBody(r io.Reader) (string, error) {
	if p.MaxBodyBytes > 0 {
		r = io.LimitReader(r, p.MaxBodyBytes)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// HTMLToText returns the visible text of an HTML document, skipping script and style.
func HTMLToText(doc string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(doc))
	var buf bytes.Buffer
	skip := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(buf.String()), " ")
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style":
				skip++
			case "br", "p", "div", "li", "tr":
				buf.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if n := string(name); (n == "script" || n == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				buf.Write(tokenizer.Text())
				buf.WriteByte(' ')
			}
		}
	}
}
