package face

import (
	"context"
	"errors"
	"math"
	"testing"
)

type memStore struct {
	creds   map[string][]float32
	failing bool
}

func newMemStore() *memStore {
	return &memStore{creds: make(map[string][]float32)}
}

func (m *memStore) UpsertCredential(_ context.Context, identity string, embedding []float32) error {
	if m.failing {
		return errors.New("storage unavailable")
	}
	cp := make([]float32, len(embedding))
	copy(cp, embedding)
	m.creds[identity] = cp
	return nil
}

func (m *memStore) LookupCredential(_ context.Context, identity string) ([]float32, error) {
	if m.failing {
		return nil, errors.New("storage unavailable")
	}
	return m.creds[identity], nil
}

// extractorFor maps image bytes (used as a key) to fixed embeddings.
func extractorFor(embeddings map[string][]float32) ExtractFunc {
	return func(imageData []byte) ([]float32, error) {
		emb, ok := embeddings[string(imageData)]
		if !ok {
			return nil, ErrNoFaceDetected
		}
		return emb, nil
	}
}

func vec(vals ...float32) []float32 { return vals }

func TestVerifyExactMatch(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(store, extractorFor(map[string][]float32{
		"imgA": vec(0.1, 0.2, 0.3),
	}))

	if _, err := eng.Enroll(context.Background(), "alice", []byte("imgA")); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	res, err := eng.Verify(context.Background(), "alice", []byte("imgA"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.Match {
		t.Error("expected match for identical embedding")
	}
	if res.Distance != 0 {
		t.Errorf("expected distance 0, got %v", res.Distance)
	}
	if res.Confidence != 1.00 {
		t.Errorf("expected confidence 1.00, got %v", res.Confidence)
	}
}

func TestVerifyThreshold(t *testing.T) {
	tests := []struct {
		name      string
		stored    []float32
		probe     []float32
		wantMatch bool
	}{
		{"well below threshold", vec(0, 0, 0), vec(0.1, 0.1, 0.1), true},
		{"just below threshold", vec(0, 0, 0), vec(0.59, 0, 0), true},
		{"exactly at threshold", vec(0, 0, 0), vec(0.6, 0, 0), false},
		{"above threshold", vec(0, 0, 0), vec(1.0, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			eng := NewEngine(store, extractorFor(map[string][]float32{
				"probe": tt.probe,
			}))
			if err := store.UpsertCredential(context.Background(), "bob", tt.stored); err != nil {
				t.Fatal(err)
			}

			res, err := eng.Verify(context.Background(), "bob", []byte("probe"))
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if res.Match != tt.wantMatch {
				t.Errorf("match = %v, want %v (distance %v)", res.Match, tt.wantMatch, res.Distance)
			}
		})
	}
}

func TestVerifyNotRegistered(t *testing.T) {
	eng := NewEngine(newMemStore(), extractorFor(map[string][]float32{
		"img": vec(1, 2, 3),
	}))

	_, err := eng.Verify(context.Background(), "nobody", []byte("img"))
	if !errors.Is(err, ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestVerifyNoFace(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(store, extractorFor(nil))
	if err := store.UpsertCredential(context.Background(), "alice", vec(1, 2, 3)); err != nil {
		t.Fatal(err)
	}

	_, err := eng.Verify(context.Background(), "alice", []byte("blank"))
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("expected ErrNoFaceDetected, got %v", err)
	}
}

func TestEnrollNoFace(t *testing.T) {
	eng := NewEngine(newMemStore(), extractorFor(nil))

	_, err := eng.Enroll(context.Background(), "alice", []byte("blank"))
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("expected ErrNoFaceDetected, got %v", err)
	}
}

func TestEnrollOverwrites(t *testing.T) {
	store := newMemStore()
	eng := NewEngine(store, extractorFor(map[string][]float32{
		"first":  vec(1, 0, 0),
		"second": vec(0, 1, 0),
	}))

	ctx := context.Background()
	if _, err := eng.Enroll(ctx, "alice", []byte("first")); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Enroll(ctx, "alice", []byte("second")); err != nil {
		t.Fatal(err)
	}

	if len(store.creds) != 1 {
		t.Fatalf("expected exactly one credential, got %d", len(store.creds))
	}

	// Latest enrollment wins.
	res, err := eng.Verify(ctx, "alice", []byte("second"))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Match || res.Distance != 0 {
		t.Errorf("expected exact match against latest embedding, got match=%v distance=%v", res.Match, res.Distance)
	}
}

func TestEuclideanDistance(t *testing.T) {
	d, err := EuclideanDistance(vec(0, 0), vec(3, 4))
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d-5) > 1e-9 {
		t.Errorf("expected distance 5, got %v", d)
	}

	if _, err := EuclideanDistance(vec(1), vec(1, 2)); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestConfidenceRounding(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1.00},
		{0.4456, 0.55},
		{0.6, 0.40},
		{1.3, -0.30}, // distances beyond 1 yield negative scores, as reported
	}
	for _, tt := range tests {
		if got := Confidence(tt.distance); got != tt.want {
			t.Errorf("Confidence(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}
}

func TestVerifyStorageError(t *testing.T) {
	store := newMemStore()
	store.failing = true
	eng := NewEngine(store, extractorFor(nil))

	_, err := eng.Verify(context.Background(), "alice", []byte("img"))
	if err == nil || errors.Is(err, ErrNotRegistered) || errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("expected storage error, got %v", err)
	}
}
