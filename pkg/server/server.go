// Package server exposes the classifier over HTTP.
package server

import (
	"context"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"

	"github.com/zpam/spam-detect/pkg/batch"
	"github.com/zpam/spam-detect/pkg/config"
	"github.com/zpam/spam-detect/pkg/metrics"
	"github.com/zpam/spam-detect/pkg/model"
	"github.com/zpam/spam-detect/pkg/predictor"
	"github.com/zpam/spam-detect/pkg/results"
)

// Predictor is the loaded model. Implemented by predictor.Predictor.
type Predictor interface {
	Predict(ctx context.Context, text string) (*predictor.Result, error)
	Info() model.ArtifactInfo
}

// Server is the HTTP API. A server without a predictor still starts; prediction
// endpoints answer 503 until one is configured.
type Server struct {
	cfg       *config.Config
	app       *fiber.App
	predictor Predictor
	processor *batch.Processor
	store     *results.FileStore
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

type Option func(*Server)

func WithPredictor(p Predictor) Option {
	return func(s *Server) { s.predictor = p }
}

// WithStore enables results files and the download endpoint
func WithStore(store *results.FileStore) Option {
	return func(s *Server) { s.store = store }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New builds the fiber app and registers all routes
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{cfg: cfg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	if s.predictor != nil {
		batchOpts := []batch.Option{
			batch.WithMetrics(s.metrics),
			batch.WithLogger(s.log),
			batch.WithPreviewRows(cfg.Batch.PreviewRows),
			batch.WithProgressEvery(cfg.Batch.ProgressEvery),
		}
		if s.store != nil {
			batchOpts = append(batchOpts, batch.WithStore(s.store))
		}
		s.processor = batch.NewProcessor(s.predictor, batchOpts...)
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "zpam",
		ErrorHandler:          errorHandler(s.log),
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             cfg.Server.MaxUploadMB * 1024 * 1024,
		ReadTimeout:           config.Duration(cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout:          config.Duration(cfg.Server.WriteTimeout, 120*time.Second),
	})

	// order matters: the logger must see the status set for recovered panics
	s.app.Use(requestIDMiddleware())
	s.app.Use(requestLogger(s.log))
	s.app.Use(recoverMiddleware(s.log))
	s.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.AllowedOrigins,
		AllowMethods:  "GET,POST,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept," + requestIDHeader,
		ExposeHeaders: requestIDHeader + ",Content-Disposition",
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/", s.home)
	s.app.Get("/health", s.health)
	s.app.Get("/ready", s.ready)
	s.app.Post("/predict", s.predict)
	s.app.Post("/predict-csv", s.predictCSV)
	s.app.Get("/download/:filename", s.download)

	if s.metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving on the configured address
func (s *Server) Listen() error {
	s.log.Info().Str("listen", s.cfg.Server.Listen).Bool("model_loaded", s.predictor != nil).Msg("http server starting")
	return s.app.Listen(s.cfg.Server.Listen)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
