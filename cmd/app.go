package cmd

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/zpam/spam-detect/pkg/cache"
	"github.com/zpam/spam-detect/pkg/config"
	"github.com/zpam/spam-detect/pkg/logging"
	"github.com/zpam/spam-detect/pkg/metrics"
	"github.com/zpam/spam-detect/pkg/model"
	"github.com/zpam/spam-detect/pkg/predictor"
	"github.com/zpam/spam-detect/pkg/profiler"
)

// dependencies are the long-lived components shared by every command
type dependencies struct {
	cfg       *config.Config
	log       zerolog.Logger
	metrics   *metrics.Metrics
	profiler  *profiler.Profiler
	predictor *predictor.Predictor // nil when the artifacts failed to load
	loadErr   error

	cleanup []func() error
}

// Close releases everything in reverse order of acquisition
func (d *dependencies) Close() {
	for i := len(d.cleanup) - 1; i >= 0; i-- {
		if err := d.cleanup[i](); err != nil {
			d.log.Warn().Err(err).Msg("cleanup failed")
		}
	}
}

// loadEnv reads .env from the working directory when present
func loadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// loadConfig reads the config file (defaults when empty), applies environment
// overrides and validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	cfg.ApplyEnv()
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newDependencies wires logging, metrics, the model and the optional cache.
// A model that fails to load is recorded in loadErr rather than returned, so
// long-running services can start unready.
func newDependencies(cfg *config.Config, useCache bool) (*dependencies, error) {
	log, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	d := &dependencies{
		cfg:      cfg,
		log:      log,
		metrics:  metrics.New(),
		profiler: profiler.New(),
		cleanup:  []func() error{closeLog},
	}

	artifacts, err := model.Load(cfg.Model.Dir, model.Files{
		Vectorizer: cfg.Model.Vectorizer,
		Scaler:     cfg.Model.Scaler,
		Classifier: cfg.Model.Classifier,
	})
	if err != nil {
		d.loadErr = err
		log.Error().Err(err).Str("dir", cfg.Model.Dir).Msg("failed to load model artifacts")
		return d, nil
	}

	log.Info().
		Str("dir", artifacts.Info.Dir).
		Str("fingerprint", artifacts.Info.Fingerprint).
		Str("classifier", artifacts.Info.ClassifierType).
		Int("vocabulary", artifacts.Info.VocabularySize).
		Msg("model artifacts loaded")

	opts := []predictor.Option{
		predictor.WithMetrics(d.metrics),
		predictor.WithProfiler(d.profiler),
		predictor.WithLogger(logging.Component(log, "predictor")),
	}

	if useCache && cfg.Cache.Enabled {
		redisCache, err := cache.NewRedisCache(cfg.Cache, logging.Component(log, "cache"))
		if err != nil {
			// Fall back to uncached predictions
			log.Warn().Err(err).Msg("prediction cache unavailable, continuing without it")
		} else {
			opts = append(opts, predictor.WithCache(redisCache, cfg.Cache.KeyPrefix))
			d.cleanup = append(d.cleanup, redisCache.Close)
		}
	}

	pred, err := predictor.New(artifacts, opts...)
	if err != nil {
		d.loadErr = err
		log.Error().Err(err).Msg("model artifacts are not usable")
		return d, nil
	}
	d.predictor = pred

	return d, nil
}

// requirePredictor is for one-shot commands that cannot run without a model
func (d *dependencies) requirePredictor() (*predictor.Predictor, error) {
	if d.predictor == nil {
		return nil, fmt.Errorf("model not available: %w", d.loadErr)
	}
	return d.predictor, nil
}
