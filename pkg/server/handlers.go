package server

import (
	"errors"
	"runtime/debug"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/zpam/spam-detect/pkg/apperr"
	"github.com/zpam/spam-detect/pkg/batch"
)

// CSVResponse is the body of a successful /predict-csv call
type CSVResponse struct {
	Success        bool        `json:"success"`
	TotalEmails    int         `json:"total_emails"`
	SpamCount      int         `json:"spam_count"`
	HamCount       int         `json:"ham_count"`
	SpamPercentage float64     `json:"spam_percentage"`
	Accuracy       *float64    `json:"accuracy,omitempty"`
	Predictions    []batch.Row `json:"predictions"`
	DownloadURL    string      `json:"download_url,omitempty"`
	Message        string      `json:"message"`
}

func (s *Server) home(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Spam Detection API",
		"endpoints": fiber.Map{
			"POST /predict":            `Predict if a single email is spam (JSON: {"email": "text"})`,
			"POST /predict-csv":        "Predict spam for all emails in CSV file (Form data with file)",
			"GET /download/<filename>": "Download results CSV",
			"GET /health":              "Check API health",
			"GET /ready":               "Check whether the model is loaded",
			"GET /metrics":             "Prometheus metrics",
		},
	})
}

func (s *Server) health(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":       "healthy",
		"model_loaded": s.predictor != nil,
	}
	if s.predictor != nil {
		body["model"] = s.predictor.Info()
	}
	return c.JSON(body)
}

func (s *Server) ready(c *fiber.Ctx) error {
	if s.predictor == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "not ready"})
	}
	return c.JSON(fiber.Map{"status": "ready"})
}

func (s *Server) predict(c *fiber.Ctx) error {
	var body map[string]any
	if err := json.Unmarshal(c.Body(), &body); err != nil || body == nil {
		return apperr.MissingField("email")
	}

	text, ok := body["email"].(string)
	if !ok {
		return apperr.MissingField("email")
	}
	if strings.TrimSpace(text) == "" {
		return apperr.EmptyInput("Email")
	}

	if s.predictor == nil {
		return apperr.ModelUnavailable("artifacts not loaded")
	}

	result, err := s.predictor.Predict(c.UserContext(), text)
	if err != nil {
		var appErr *apperr.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return apperr.PredictionFailed(err)
	}
	if result == nil {
		return apperr.NoValidContent()
	}

	return c.JSON(result)
}

func (s *Server) predictCSV(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return apperr.NoFile("No file provided")
	}

	files := form.File["file"]
	if len(files) == 0 {
		// a file part submitted without a filename arrives as a plain value
		if _, ok := form.Value["file"]; ok {
			return apperr.NoFile("No file selected")
		}
		return apperr.NoFile("No file provided")
	}

	fh := files[0]
	if fh.Filename == "" {
		return apperr.NoFile("No file selected")
	}
	if !s.cfg.IsAllowedExtension(fh.Filename) {
		return apperr.UnsupportedFileType(s.cfg.Server.AllowedExtensions)
	}

	if s.processor == nil {
		return apperr.ModelUnavailable("artifacts not loaded")
	}

	f, err := fh.Open()
	if err != nil {
		return s.batchFailed(c, err)
	}
	defer f.Close()

	table, err := batch.ReadCSV(f)
	if err != nil {
		return s.batchFailed(c, err)
	}

	summary, err := s.processor.Process(c.UserContext(), table)
	if err != nil {
		if errors.Is(err, apperr.ErrNoTextColumn) {
			return err
		}
		return s.batchFailed(c, err)
	}

	response := CSVResponse{
		Success:        true,
		TotalEmails:    summary.Total,
		SpamCount:      summary.SpamCount,
		HamCount:       summary.HamCount,
		SpamPercentage: summary.SpamPercentage,
		Accuracy:       summary.Accuracy,
		Predictions:    summary.Preview,
		Message:        summary.Message(),
	}
	if summary.ResultName != "" {
		response.DownloadURL = "/download/" + summary.ResultName
	}

	return c.JSON(response)
}

func (s *Server) batchFailed(c *fiber.Ctx, err error) error {
	s.log.Error().
		Str("request_id", requestID(c)).
		Err(err).
		Str("stack", string(debug.Stack())).
		Msg("csv processing failed")
	return apperr.BatchProcessingFailed(err)
}

func (s *Server) download(c *fiber.Ctx) error {
	if s.store == nil {
		return apperr.NotFound("File")
	}

	name := c.Params("filename")
	f, err := s.store.Open(name)
	if err != nil {
		return err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return err
	}

	c.Attachment(name)
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.SendStream(f, int(info.Size()))
}
