// Package model holds the pretrained artifacts and the two inference stages built on
// them: feature construction and label-order-safe probability scoring.
package model

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/zpam/spam-detect/pkg/apperr"
)

// Default artifact file names inside the model directory.
const (
	DefaultVectorizerFile = "tfidf_vectoriser.json"
	DefaultScalerFile     = "scaler.json"
	DefaultClassifierFile = "best_model.json"
)

// Files names the three artifacts relative to the model directory.
type Files struct {
	Vectorizer string
	Scaler     string
	Classifier string
}

// DefaultFiles returns the standard artifact names.
func DefaultFiles() Files {
	return Files{
		Vectorizer: DefaultVectorizerFile,
		Scaler:     DefaultScalerFile,
		Classifier: DefaultClassifierFile,
	}
}

// ArtifactInfo describes a loaded model for health reporting and cache keys.
type ArtifactInfo struct {
	Dir            string    `json:"dir,omitempty"`
	Fingerprint    string    `json:"fingerprint"`
	ClassifierType string    `json:"classifier_type"`
	Classes        []any     `json:"classes"`
	VocabularySize int       `json:"vocabulary_size"`
	LoadedAt       time.Time `json:"loaded_at"`
}

// Artifacts is the immutable, shareable bundle used by every prediction.
type Artifacts struct {
	Vectorizer *Vectorizer
	Scaler     *Scaler
	Classifier Classifier
	Info       ArtifactInfo
}

// New assembles artifacts and checks they were fitted together.
func New(vectorizer *Vectorizer, scaler *Scaler, classifier Classifier) (*Artifacts, error) {
	switch {
	case vectorizer == nil:
		return nil, apperr.ModelUnavailable("vectorizer missing")
	case scaler == nil:
		return nil, apperr.ModelUnavailable("scaler missing")
	case classifier == nil:
		return nil, apperr.ModelUnavailable("classifier missing")
	}

	if want := vectorizer.Width() + NumericFeatureCount; classifier.NumFeatures() != want {
		return nil, apperr.ModelUnavailable(fmt.Sprintf(
			"classifier expects %d features, vectorizer produces %d", classifier.NumFeatures(), want))
	}
	if len(classifier.Classes()) != 2 {
		return nil, apperr.ModelUnavailable(fmt.Sprintf(
			"classifier must declare exactly two classes, got %d", len(classifier.Classes())))
	}
	if err := scaler.validate(vectorizer.Width()); err != nil {
		return nil, apperr.ModelUnavailable(err.Error())
	}

	return &Artifacts{
		Vectorizer: vectorizer,
		Scaler:     scaler,
		Classifier: classifier,
		Info: ArtifactInfo{
			ClassifierType: classifier.Type(),
			Classes:        classifier.Classes(),
			VocabularySize: vectorizer.Width(),
			LoadedAt:       time.Now(),
		},
	}, nil
}

// Load reads the three JSON artifacts from dir. Any failure is a ModelUnavailable error.
func Load(dir string, files Files) (*Artifacts, error) {
	digest := sha1.New()

	read := func(name string) ([]byte, error) {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, apperr.ModelUnavailable(fmt.Sprintf("failed to read %s: %v", name, err))
		}
		digest.Write(data)
		return data, nil
	}

	vecData, err := read(files.Vectorizer)
	if err != nil {
		return nil, err
	}
	var spec VectorizerSpec
	if err := json.Unmarshal(vecData, &spec); err != nil {
		return nil, apperr.ModelUnavailable(fmt.Sprintf("failed to decode %s: %v", files.Vectorizer, err))
	}
	vectorizer, err := NewVectorizer(spec)
	if err != nil {
		return nil, apperr.ModelUnavailable(fmt.Sprintf("invalid %s: %v", files.Vectorizer, err))
	}

	scalerData, err := read(files.Scaler)
	if err != nil {
		return nil, err
	}
	var scaler Scaler
	if err := json.Unmarshal(scalerData, &scaler); err != nil {
		return nil, apperr.ModelUnavailable(fmt.Sprintf("failed to decode %s: %v", files.Scaler, err))
	}

	clfData, err := read(files.Classifier)
	if err != nil {
		return nil, err
	}
	classifier, err := DecodeClassifier(clfData)
	if err != nil {
		return nil, apperr.ModelUnavailable(fmt.Sprintf("invalid %s: %v", files.Classifier, err))
	}

	artifacts, err := New(vectorizer, &scaler, classifier)
	if err != nil {
		return nil, err
	}
	artifacts.Info.Dir = dir
	artifacts.Info.Fingerprint = hex.EncodeToString(digest.Sum(nil))
	return artifacts, nil
}
