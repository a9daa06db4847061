// Package predictor classifies a single email text as spam or ham.
package predictor

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/zpam/spam-detect/pkg/apperr"
	"github.com/zpam/spam-detect/pkg/cache"
	"github.com/zpam/spam-detect/pkg/metrics"
	"github.com/zpam/spam-detect/pkg/model"
	"github.com/zpam/spam-detect/pkg/profiler"
	"github.com/zpam/spam-detect/pkg/textnorm"
)

// Labels
const (
	LabelSpam = "spam"
	LabelHam  = "ham"
)

// Result is the outcome of one prediction.
type Result struct {
	Prediction    string              `json:"prediction"`
	Confidence    float64             `json:"confidence"`
	Probabilities model.Probabilities `json:"probabilities"`
}

// IsSpam reports whether the predicted label is spam
func (r *Result) IsSpam() bool {
	return r.Prediction == LabelSpam
}

// Cache stores serialized results. Implemented by cache.RedisCache.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Predictor is safe for concurrent use; all state is read-only after New.
type Predictor struct {
	artifacts *model.Artifacts
	builder   *model.FeatureBuilder
	adapter   *model.ClassifierAdapter

	cache       Cache
	cachePrefix string
	metrics     *metrics.Metrics
	profiler    *profiler.Profiler
	log         zerolog.Logger
}

type Option func(*Predictor)

// WithCache enables read-through caching of results under keys starting with prefix.
func WithCache(c Cache, prefix string) Option {
	return func(p *Predictor) {
		p.cache = c
		p.cachePrefix = prefix
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Predictor) { p.metrics = m }
}

func WithProfiler(prof *profiler.Profiler) Option {
	return func(p *Predictor) { p.profiler = prof }
}

func WithLogger(log zerolog.Logger) Option {
	return func(p *Predictor) { p.log = log }
}

func New(artifacts *model.Artifacts, opts ...Option) (*Predictor, error) {
	if artifacts == nil {
		return nil, apperr.ModelUnavailable("artifacts not loaded")
	}

	adapter, err := model.NewClassifierAdapter(artifacts.Classifier)
	if err != nil {
		return nil, err
	}

	p := &Predictor{
		artifacts: artifacts,
		builder:   model.NewFeatureBuilder(artifacts.Vectorizer),
		adapter:   adapter,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if !adapter.ByLabel() {
		p.log.Warn().
			Interface("classes", artifacts.Classifier.Classes()).
			Msg("classifier labels are not {0, 1}; mapping probability column 0 to spam and column 1 to ham")
	}

	return p, nil
}

// Info describes the loaded model.
func (p *Predictor) Info() model.ArtifactInfo {
	return p.artifacts.Info
}

// Predict classifies text. It returns (nil, nil) when nothing is left after
// normalization. Ties resolve to ham.
func (p *Predictor) Predict(ctx context.Context, text string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	timer := p.profiler.Start(profiler.StageNormalize)
	normalized := textnorm.Normalize(text)
	timer.Stop()

	if normalized == "" {
		return nil, nil
	}

	key := ""
	if p.cache != nil {
		key = cache.Key(p.cachePrefix, p.artifacts.Info.Fingerprint, text)
		if cached := p.lookup(ctx, key); cached != nil {
			p.metrics.ObservePrediction(cached.Prediction, time.Since(start))
			return cached, nil
		}
	}

	result, err := p.score(normalized, text)
	if err != nil {
		p.metrics.PredictionError()
		if errors.Is(err, apperr.ErrModelUnavailable) {
			return nil, err
		}
		return nil, apperr.PredictionFailed(err)
	}

	elapsed := time.Since(start)
	p.profiler.Record(profiler.StagePredict, elapsed)
	p.metrics.ObservePrediction(result.Prediction, elapsed)

	if p.cache != nil {
		p.store(ctx, key, result)
	}

	p.log.Debug().
		Str("prediction", result.Prediction).
		Float64("confidence", result.Confidence).
		Dur("elapsed", elapsed).
		Msg("email classified")

	return result, nil
}

func (p *Predictor) score(normalized, original string) (*Result, error) {
	timer := p.profiler.Start(profiler.StageFeatures)
	features, err := p.builder.Build(normalized, original)
	timer.Stop()
	if err != nil {
		return nil, err
	}

	timer = p.profiler.Start(profiler.StageScore)
	probs, err := p.adapter.Score(features)
	timer.Stop()
	if err != nil {
		return nil, err
	}

	result := &Result{
		Prediction:    LabelHam,
		Confidence:    probs.Ham,
		Probabilities: probs,
	}
	if probs.Spam > probs.Ham {
		result.Prediction = LabelSpam
		result.Confidence = probs.Spam
	}
	return result, nil
}

// lookup treats every cache failure as a miss.
func (p *Predictor) lookup(ctx context.Context, key string) *Result {
	data, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.metrics.CacheLookup("error")
		p.log.Warn().Err(err).Msg("prediction cache lookup failed")
		return nil
	}
	if !ok {
		p.metrics.CacheLookup("miss")
		return nil
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		p.metrics.CacheLookup("error")
		p.log.Warn().Err(err).Msg("discarding undecodable cache entry")
		return nil
	}
	p.metrics.CacheLookup("hit")
	return &result
}

func (p *Predictor) store(ctx context.Context, key string, result *Result) {
	data, err := json.Marshal(result)
	if err != nil {
		p.log.Warn().Err(err).Msg("failed to encode result for cache")
		return
	}
	if err := p.cache.Set(ctx, key, data); err != nil {
		p.log.Warn().Err(err).Msg("prediction cache write failed")
	}
}
