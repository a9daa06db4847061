package milter

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/d--j/go-milter"
	"github.com/rs/zerolog"

	"github.com/zpam/spam-detect/pkg/config"
	"github.com/zpam/spam-detect/pkg/email"
	"github.com/zpam/spam-detect/pkg/predictor"
)

// Status header values
const (
	StatusSpam    = "Spam"
	StatusHam     = "Ham"
	StatusUnknown = "Unknown"
)

// Predictor classifies one message text
type Predictor interface {
	Predict(ctx context.Context, text string) (*predictor.Result, error)
}

// headerAdder is the part of milter.Modifier the verdict needs
type headerAdder interface {
	AddHeader(name, value string) error
}

// Handler implements milter.Milter. One handler serves one SMTP connection,
// which may carry several messages.
type Handler struct {
	milter.NoOpMilter
	config    config.MilterConfig
	predictor Predictor
	log       zerolog.Logger
	parser    *email.Parser

	// Message being assembled
	header    bytes.Buffer
	body      bytes.Buffer
	subject   string
	truncated bool

	startTime time.Time
}

// NewHandler creates a new milter handler
func NewHandler(cfg config.MilterConfig, pred Predictor, log zerolog.Logger) *Handler {
	return &Handler{
		config:    cfg,
		predictor: pred,
		log:       log,
		parser:    email.NewParser(),
		startTime: time.Now(),
	}
}

// NewConnection is called when a new SMTP connection is established
func (h *Handler) NewConnection(m milter.Modifier) error {
	h.reset()
	return nil
}

// MailFrom starts a new message on the connection
func (h *Handler) MailFrom(from string, esmtpArgs string, m milter.Modifier) (*milter.Response, error) {
	h.reset()
	return milter.RespContinue, nil
}

// Header is called for each header
func (h *Handler) Header(name string, value string, m milter.Modifier) (*milter.Response, error) {
	h.addHeader(name, value)
	return milter.RespContinue, nil
}

// BodyChunk is called for each body chunk
func (h *Handler) BodyChunk(chunk []byte, m milter.Modifier) (*milter.Response, error) {
	h.addBody(chunk)
	return milter.RespContinue, nil
}

// EndOfMessage classifies the collected message
func (h *Handler) EndOfMessage(m milter.Modifier) (*milter.Response, error) {
	return h.verdict(context.Background(), m)
}

// Abort drops the message in progress
func (h *Handler) Abort(m milter.Modifier) error {
	h.reset()
	return nil
}

func (h *Handler) reset() {
	h.header.Reset()
	h.body.Reset()
	h.subject = ""
	h.truncated = false
	h.startTime = time.Now()
}

func (h *Handler) addHeader(name, value string) {
	if strings.EqualFold(name, "Subject") {
		h.subject = value
	}
	fmt.Fprintf(&h.header, "%s: %s\r\n", name, strings.TrimLeft(value, " "))
}

func (h *Handler) addBody(chunk []byte) {
	if limit := h.config.MaxBodyBytes; limit > 0 {
		room := limit - h.body.Len()
		if room <= 0 {
			h.truncated = true
			return
		}
		if len(chunk) > room {
			chunk = chunk[:room]
			h.truncated = true
		}
	}
	h.body.Write(chunk)
}

// text decodes the collected message into classifier input. A message the
// MIME parser rejects is classified from its raw subject and body.
func (h *Handler) text() string {
	raw := make([]byte, 0, h.header.Len()+2+h.body.Len())
	raw = append(raw, h.header.Bytes()...)
	raw = append(raw, "\r\n"...)
	raw = append(raw, h.body.Bytes()...)

	parsed, err := h.parser.Parse(bytes.NewReader(raw))
	if err != nil {
		h.log.Debug().Err(err).Msg("falling back to raw message text")
		return strings.TrimSpace(h.subject + " " + h.body.String())
	}
	return parsed.Text()
}

func (h *Handler) verdict(ctx context.Context, m headerAdder) (*milter.Response, error) {
	result, err := h.predictor.Predict(ctx, h.text())
	if err != nil {
		// fail open: the message is delivered unmarked
		h.log.Warn().Err(err).Msg("prediction failed")
		result = nil
	}

	h.log.Info().
		Str("status", status(result)).
		Bool("truncated", h.truncated).
		Dur("elapsed", time.Since(h.startTime)).
		Msg("message classified")

	if h.config.AddSpamHeaders {
		if err := h.addSpamHeaders(m, result); err != nil {
			return milter.RespTempFail, fmt.Errorf("failed to add spam headers: %v", err)
		}
	}

	return h.determineAction(result), nil
}

func status(result *predictor.Result) string {
	switch {
	case result == nil:
		return StatusUnknown
	case result.IsSpam():
		return StatusSpam
	default:
		return StatusHam
	}
}

// addSpamHeaders adds the prefixed Status, Confidence, Probability and Info headers
func (h *Handler) addSpamHeaders(m headerAdder, result *predictor.Result) error {
	prefix := h.config.SpamHeaderPrefix

	if err := m.AddHeader(prefix+"Status", status(result)); err != nil {
		return err
	}

	if result != nil {
		if err := m.AddHeader(prefix+"Confidence", fmt.Sprintf("%.4f", result.Confidence)); err != nil {
			return err
		}
		probability := fmt.Sprintf("spam=%.4f; ham=%.4f", result.Probabilities.Spam, result.Probabilities.Ham)
		if err := m.AddHeader(prefix+"Probability", probability); err != nil {
			return err
		}
	}

	scanInfo := fmt.Sprintf("zpam; %.2fms", float64(time.Since(h.startTime).Microseconds())/1000)
	return m.AddHeader(prefix+"Info", scanInfo)
}

// determineAction rejects confident spam when a reject confidence is configured
func (h *Handler) determineAction(result *predictor.Result) *milter.Response {
	threshold := h.config.RejectConfidence
	if result == nil || !result.IsSpam() || threshold <= 0 || result.Confidence < threshold {
		return milter.RespContinue
	}

	message := h.config.RejectMessage
	if message == "" {
		message = "Message rejected as spam"
	}
	resp, err := milter.RejectWithCodeAndReason(550, fmt.Sprintf("5.7.1 %s (confidence: %.2f)", message, result.Confidence))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to build reject response")
		return milter.RespReject
	}
	return resp
}
