package batch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zpam/spam-detect/pkg/apperr"
	"github.com/zpam/spam-detect/pkg/model/modeltest"
	"github.com/zpam/spam-detect/pkg/predictor"
)

type memoryStore struct {
	buf   bytes.Buffer
	saves int
}

func (s *memoryStore) Save(_ context.Context, write func(io.Writer) error) (string, error) {
	s.saves++
	s.buf.Reset()
	if err := write(&s.buf); err != nil {
		return "", err
	}
	return "spam_detection_results_test.csv", nil
}

// scriptedPredictor fails on texts containing "boom" and delegates the rest.
type scriptedPredictor struct {
	next Predictor
}

func (p scriptedPredictor) Predict(ctx context.Context, text string) (*predictor.Result, error) {
	if strings.Contains(text, "boom") {
		return nil, apperr.PredictionFailed(errors.New("boom"))
	}
	return p.next.Predict(ctx, text)
}

func newPredictor(t *testing.T) *predictor.Predictor {
	t.Helper()
	p, err := predictor.New(modeltest.Artifacts(t))
	require.NoError(t, err)
	return p
}

func mustReadCSV(t *testing.T, data string) *Table {
	t.Helper()
	table, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)
	return table
}

func TestReadCSV(t *testing.T) {
	table := mustReadCSV(t, "\ufeffSubject,Message\n\"Hi\",\"line one\nline two\"\n\nonly-subject\n")

	assert.Equal(t, []string{"Subject", "Message"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"Hi", "line one\nline two"}, table.Rows[0])
	assert.Equal(t, []string{"only-subject", ""}, table.Rows[1])
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyTable)

	_, err = ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)
}

func TestDetectColumns(t *testing.T) {
	tests := []struct {
		name    string
		header  []string
		text    string
		subject string
		label   string
	}{
		{"priority over column order", []string{"Spam", "Text", "Subject", "Message", "Spam/Ham"}, "message", "subject", "spam/ham"},
		{"normalized headers", []string{"  BODY ", " Title", "LABEL"}, "body", "title", "label"},
		{"email fallback", []string{"id", "email"}, "email", "", ""},
		{"content beats body", []string{"body", "content", "type"}, "content", "", "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, err := DetectColumns(tt.header)
			require.NoError(t, err)
			assert.Equal(t, tt.text, columnName(cols, cols.Text))
			assert.Equal(t, tt.subject, columnName(cols, cols.Subject))
			assert.Equal(t, tt.label, columnName(cols, cols.Label))
		})
	}
}

func TestDetectColumnsNoText(t *testing.T) {
	_, err := DetectColumns([]string{" ID ", "Subject", "Spam"})
	require.ErrorIs(t, err, apperr.ErrNoTextColumn)

	appErr := apperr.AsAppError(err)
	assert.Equal(t, []string{"id", "subject", "spam"}, appErr.Details["available_columns"])
	assert.Contains(t, appErr.Message, "Could not find message column")
}

func TestAssembleText(t *testing.T) {
	cols := Columns{Text: 1, Subject: 0, Label: -1}
	noSubject := Columns{Text: 0, Subject: -1, Label: -1}

	tests := []struct {
		name     string
		record   []string
		cols     Columns
		expected string
	}{
		{"subject and message", []string{"Hello", "world"}, cols, "Hello world"},
		{"missing subject", []string{"NaN", "world"}, cols, "world"},
		{"empty subject", []string{"", "world"}, cols, "world"},
		{"missing message", []string{"Hello", "NA"}, cols, "Hello "},
		{"both missing", []string{"null", "n/a"}, cols, ""},
		{"no subject column", []string{"world"}, noSubject, "world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AssembleText(tt.record, tt.cols))
		})
	}
}

func TestGroundTruth(t *testing.T) {
	tests := map[string]string{
		"0":    "ham",
		"1":    "spam",
		" 1 ":  "spam",
		"1.0":  "spam",
		"0.0":  "ham",
		"2":    "",
		"spam": "",
		"":     "",
		"NaN":  "",
	}
	for value, expected := range tests {
		assert.Equal(t, expected, GroundTruth(value), "GroundTruth(%q)", value)
	}
}

func TestPreview(t *testing.T) {
	exact := strings.Repeat("a", 100)
	assert.Equal(t, exact, Preview(exact))

	long := strings.Repeat("é", 101)
	assert.Equal(t, strings.Repeat("é", 100)+"...", Preview(long))
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, percentage(0, 0))
	assert.Equal(t, 33.33, percentage(1, 3))
	assert.Equal(t, 66.67, percentage(2, 3))
	assert.Equal(t, 100.0, percentage(7, 7))
	assert.Equal(t, 12.5, percentage(1, 8))
}

func TestProcessWithoutLabels(t *testing.T) {
	table := mustReadCSV(t, "subject,message\n"+
		"Win,FREE MONEY!!! Click now\n"+
		"Status,Meeting tomorrow about the project report\n"+
		"hi,hello there\n")

	summary, err := NewProcessor(newPredictor(t)).Process(context.Background(), table)
	require.NoError(t, err)

	assert.Nil(t, summary.Accuracy)
	assert.Equal(t, 3, summary.Total)
	assert.Len(t, summary.Preview, 3)
	assert.Equal(t, summary.Total, summary.SpamCount+summary.HamCount)
	assert.Equal(t, 1, summary.SpamCount)
	assert.Equal(t, 33.33, summary.SpamPercentage)
	assert.Empty(t, summary.ResultName)

	assert.Equal(t, 1, summary.Preview[0].Row)
	assert.Equal(t, "Win FREE MONEY!!! Click now", summary.Preview[0].TextPreview)
	assert.Equal(t, "spam", summary.Preview[0].Prediction)
	assert.Equal(t, "Processed 3 emails. 1 spam, 2 ham.", summary.Message())
}

func TestProcessWithLabelsAndExclusions(t *testing.T) {
	table := mustReadCSV(t, "Subject,Message,Spam/Ham\n"+
		"Win,FREE MONEY!!! Click now,1\n"+
		"Re: meeting,see you at the project meeting tomorrow,0\n"+
		",@@@,1\n"+
		"Lunch,\"thanks for lunch, team\",1\n")

	store := &memoryStore{}
	summary, err := NewProcessor(newPredictor(t), WithStore(store)).Process(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.SpamCount)
	assert.Equal(t, 2, summary.HamCount)
	assert.Equal(t, 1, summary.Excluded)
	assert.Equal(t, 33.33, summary.SpamPercentage)
	require.NotNil(t, summary.Accuracy)
	assert.Equal(t, 66.67, *summary.Accuracy)
	assert.Equal(t, "Processed 3 emails. 1 spam, 2 ham. Accuracy: 66.67%", summary.Message())

	rows := []int{}
	for _, r := range summary.Preview {
		rows = append(rows, r.Row)
	}
	assert.Equal(t, []int{1, 2, 4}, rows)

	assert.Equal(t, 1, store.saves)
	assert.Equal(t, "spam_detection_results_test.csv", summary.ResultName)

	out := mustReadCSV(t, store.buf.String())
	assert.Equal(t, []string{"subject", "message", "spam/ham",
		"predicted_label", "confidence", "predicted_spam/ham", "actual_label"}, out.Header)
	require.Len(t, out.Rows, 4)
	assert.Equal(t, []string{"Win", "FREE MONEY!!! Click now", "1"}, out.Rows[0][:3])
	assert.Equal(t, "spam", out.Rows[0][3])
	assert.Equal(t, "1", out.Rows[0][5])
	assert.Equal(t, "spam", out.Rows[0][6])
	assert.Equal(t, []string{"", "@@@", "1", "", "", "", "spam"}, out.Rows[2])
	assert.Equal(t, "0", out.Rows[3][5])
}

func TestProcessRowErrorAbortsBatch(t *testing.T) {
	table := mustReadCSV(t, "text\nfree money\nboom goes the row\nproject report\n")

	store := &memoryStore{}
	summary, err := NewProcessor(scriptedPredictor{next: newPredictor(t)}, WithStore(store)).Process(context.Background(), table)
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.ErrorIs(t, err, apperr.ErrPredictionFailed)
	assert.Contains(t, err.Error(), "row 2")
	assert.Equal(t, 0, store.saves)
}

func TestProcessAllExcluded(t *testing.T) {
	table := mustReadCSV(t, "message,label\n@@@,1\nNaN,0\n")

	summary, err := NewProcessor(newPredictor(t)).Process(context.Background(), table)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0.0, summary.SpamPercentage)
	require.NotNil(t, summary.Accuracy)
	assert.Equal(t, 0.0, *summary.Accuracy)
	assert.Empty(t, summary.Preview)
}

func TestProcessPreviewLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("message\n")
	for i := 0; i < 25; i++ {
		sb.WriteString("free money now\n")
	}

	summary, err := NewProcessor(newPredictor(t), WithPreviewRows(10)).Process(context.Background(), mustReadCSV(t, sb.String()))
	require.NoError(t, err)
	assert.Equal(t, 25, summary.Total)
	assert.Len(t, summary.Preview, 10)
	assert.Equal(t, 100.0, summary.SpamPercentage)
}

func TestProcessNoTextColumn(t *testing.T) {
	_, err := NewProcessor(newPredictor(t)).Process(context.Background(), mustReadCSV(t, "id,subject\n1,hi\n"))
	assert.ErrorIs(t, err, apperr.ErrNoTextColumn)
}

func TestProcessCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewProcessor(newPredictor(t)).Process(ctx, mustReadCSV(t, "message\nfree money\n"))
	assert.ErrorIs(t, err, context.Canceled)
}
