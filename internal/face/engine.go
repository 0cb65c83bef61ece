// Package face implements 1:1 face verification: a claimed identity is
// checked against a single stored embedding by Euclidean distance.
package face

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// MatchThreshold is the L2 distance below which two embeddings are the
// same person. It is tuned to the embedding model in use and is not
// configurable; changing the model invalidates it.
const MatchThreshold = 0.6

var (
	// ErrNotRegistered means the claimed identity has no stored credential.
	ErrNotRegistered = errors.New("identity not registered")
	// ErrNoFaceDetected means the supplied image contains no usable face.
	ErrNoFaceDetected = errors.New("no face detected in image")
)

// CredentialStore persists one embedding per identity.
// Lookup returns (nil, nil) when the identity has no credential.
type CredentialStore interface {
	UpsertCredential(ctx context.Context, identity string, embedding []float32) error
	LookupCredential(ctx context.Context, identity string) ([]float32, error)
}

// ExtractFunc produces an embedding from raw image bytes. It must return
// ErrNoFaceDetected (possibly wrapped) when no face is found.
type ExtractFunc func(imageData []byte) ([]float32, error)

// Result is the outcome of a verification attempt.
type Result struct {
	Match      bool
	Confidence float64 // 1 - distance, rounded to two decimals; not a probability
	Distance   float64
}

// Engine compares fresh embeddings against stored credentials.
type Engine struct {
	store   CredentialStore
	extract ExtractFunc
}

func NewEngine(store CredentialStore, extract ExtractFunc) *Engine {
	return &Engine{store: store, extract: extract}
}

// Enroll extracts an embedding from the image and stores it for the
// identity, overwriting any previous credential (last registered face wins).
func (e *Engine) Enroll(ctx context.Context, identity string, imageData []byte) ([]float32, error) {
	embedding, err := e.extract(imageData)
	if err != nil {
		return nil, err
	}
	if err := e.store.UpsertCredential(ctx, identity, embedding); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}
	return embedding, nil
}

// Verify decides whether the photographed person is the claimed identity.
func (e *Engine) Verify(ctx context.Context, identity string, imageData []byte) (Result, error) {
	stored, err := e.store.LookupCredential(ctx, identity)
	if err != nil {
		return Result{}, fmt.Errorf("lookup credential: %w", err)
	}
	if stored == nil {
		return Result{}, ErrNotRegistered
	}

	embedding, err := e.extract(imageData)
	if err != nil {
		return Result{}, err
	}

	dist, err := EuclideanDistance(embedding, stored)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Match:      dist < MatchThreshold,
		Confidence: Confidence(dist),
		Distance:   dist,
	}, nil
}

// EuclideanDistance computes the L2 distance between two vectors.
func EuclideanDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// Confidence maps a distance to the reported score: 1 - distance rounded
// to two decimals. Purely a monotonic transform for display.
func Confidence(distance float64) float64 {
	return math.Round((1-distance)*100) / 100
}
