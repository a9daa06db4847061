// Package batch classifies every row of a tabular upload and aggregates the results.
package batch

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/zpam/spam-detect/pkg/metrics"
	"github.com/zpam/spam-detect/pkg/predictor"
)

const (
	DefaultPreviewRows = 10
	previewChars       = 100
)

// Result file columns appended after the input columns.
const (
	ColumnPredictedLabel  = "predicted_label"
	ColumnConfidence      = "confidence"
	ColumnPredictedBinary = "predicted_spam/ham"
	ColumnActualLabel     = "actual_label"
)

// Predictor classifies one text; (nil, nil) means the text had no usable content.
type Predictor interface {
	Predict(ctx context.Context, text string) (*predictor.Result, error)
}

// ResultStore persists a result file and returns its retrieval name.
type ResultStore interface {
	Save(ctx context.Context, write func(w io.Writer) error) (string, error)
}

// Row is one classified input row.
type Row struct {
	Row         int     `json:"row"` // 1-based position in the input
	TextPreview string  `json:"text_preview"`
	Prediction  string  `json:"prediction"`
	Confidence  float64 `json:"confidence"`
}

// Summary aggregates a processed table. Counts cover included rows only.
type Summary struct {
	Total          int
	SpamCount      int
	HamCount       int
	SpamPercentage float64
	Accuracy       *float64 // nil when the input has no label column
	Preview        []Row
	Excluded       int
	ResultName     string
	Columns        Columns
	Duration       time.Duration
}

// Message is the human-readable one-line summary.
func (s *Summary) Message() string {
	msg := fmt.Sprintf("Processed %d emails. %d spam, %d ham.", s.Total, s.SpamCount, s.HamCount)
	if s.Accuracy != nil {
		msg += fmt.Sprintf(" Accuracy: %.2f%%", *s.Accuracy)
	}
	return msg
}

// Processor runs batches sequentially, one row at a time.
type Processor struct {
	predictor     Predictor
	store         ResultStore
	metrics       *metrics.Metrics
	log           zerolog.Logger
	previewRows   int
	progressEvery int
}

type Option func(*Processor)

// WithStore persists a results file for every batch.
func WithStore(store ResultStore) Option {
	return func(p *Processor) { p.store = store }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(p *Processor) { p.log = log }
}

func WithPreviewRows(n int) Option {
	return func(p *Processor) { p.previewRows = n }
}

// WithProgressEvery logs progress every n rows; 0 disables it.
func WithProgressEvery(n int) Option {
	return func(p *Processor) { p.progressEvery = n }
}

func NewProcessor(pred Predictor, opts ...Option) *Processor {
	p := &Processor{
		predictor:   pred,
		log:         zerolog.Nop(),
		previewRows: DefaultPreviewRows,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process classifies every row of table. A row with nothing left after
// normalization is excluded from counts and preview but kept in the results file
// with blank prediction cells. A prediction error aborts the whole batch.
func (p *Processor) Process(ctx context.Context, table *Table) (*Summary, error) {
	start := time.Now()

	cols, err := DetectColumns(table.Header)
	if err != nil {
		return nil, err
	}

	p.log.Info().
		Int("rows", len(table.Rows)).
		Str("text_column", cols.Names[cols.Text]).
		Str("subject_column", columnName(cols, cols.Subject)).
		Str("label_column", columnName(cols, cols.Label)).
		Msg("processing batch")

	summary := &Summary{Columns: cols, Preview: []Row{}}
	// nil entries are excluded rows
	outcomes := make([]*predictor.Result, len(table.Rows))
	correct := 0

	for i, record := range table.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text := AssembleText(record, cols)
		result, err := p.predictor.Predict(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if result == nil {
			summary.Excluded++
			continue
		}

		outcomes[i] = result
		summary.Total++
		if result.IsSpam() {
			summary.SpamCount++
		} else {
			summary.HamCount++
		}

		if cols.HasLabel() && GroundTruth(record[cols.Label]) == result.Prediction {
			correct++
		}

		if len(summary.Preview) < p.previewRows {
			summary.Preview = append(summary.Preview, Row{
				Row:         i + 1,
				TextPreview: Preview(text),
				Prediction:  result.Prediction,
				Confidence:  result.Confidence,
			})
		}

		if p.progressEvery > 0 && (i+1)%p.progressEvery == 0 {
			p.log.Info().Int("processed", i+1).Int("total", len(table.Rows)).Msg("batch progress")
		}
	}

	summary.SpamPercentage = percentage(summary.SpamCount, summary.Total)
	if cols.HasLabel() {
		acc := percentage(correct, summary.Total)
		summary.Accuracy = &acc
	}

	if p.store != nil {
		name, err := p.store.Save(ctx, func(w io.Writer) error {
			return resultsTable(table, cols, outcomes).WriteCSV(w)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to save results: %w", err)
		}
		summary.ResultName = name
	}

	summary.Duration = time.Since(start)
	p.metrics.ObserveBatch(summary.Total, summary.Excluded)

	p.log.Info().
		Int("total", summary.Total).
		Int("spam", summary.SpamCount).
		Int("ham", summary.HamCount).
		Int("excluded", summary.Excluded).
		Str("results", summary.ResultName).
		Dur("elapsed", summary.Duration).
		Msg("batch processed")

	return summary, nil
}

// AssembleText joins subject and message. A missing subject contributes nothing;
// a missing message contributes an empty string.
func AssembleText(record []string, cols Columns) string {
	text := ""
	if cols.HasSubject() && !IsMissing(record[cols.Subject]) {
		text = record[cols.Subject] + " "
	}
	if msg := record[cols.Text]; !IsMissing(msg) {
		text += msg
	}
	return text
}

// GroundTruth maps a label cell to "ham" (0) or "spam" (1). Anything else maps to "".
func GroundTruth(value string) string {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return ""
	}
	switch f {
	case 0:
		return predictor.LabelHam
	case 1:
		return predictor.LabelSpam
	}
	return ""
}

// Preview truncates text to 100 characters, marking truncation with "...".
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= previewChars {
		return text
	}
	return string([]rune(text)[:previewChars]) + "..."
}

// percentage returns 100*part/total rounded to two decimals, or 0 when total is 0.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(2).
		InexactFloat64()
}

func columnName(cols Columns, idx int) string {
	if idx < 0 {
		return ""
	}
	return cols.Names[idx]
}

// resultsTable extends the input with prediction columns. Input columns keep
// their normalized names.
func resultsTable(in *Table, cols Columns, outcomes []*predictor.Result) *Table {
	header := append([]string{}, cols.Names...)
	header = append(header, ColumnPredictedLabel, ColumnConfidence)
	if cols.HasLabel() {
		header = append(header, ColumnPredictedBinary, ColumnActualLabel)
	}

	out := &Table{Header: header, Rows: make([][]string, len(in.Rows))}
	for i, record := range in.Rows {
		row := append(make([]string, 0, len(header)), record...)

		result := outcomes[i]
		label, confidence, binary := "", "", ""
		if result != nil {
			label = result.Prediction
			confidence = strconv.FormatFloat(result.Confidence, 'f', -1, 64)
			binary = "0"
			if result.IsSpam() {
				binary = "1"
			}
		}

		row = append(row, label, confidence)
		if cols.HasLabel() {
			row = append(row, binary, GroundTruth(record[cols.Label]))
		}
		out.Rows[i] = row
	}
	return out
}
