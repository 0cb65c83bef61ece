package faceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/attendo/internal/api/handlers"
	"github.com/your-org/attendo/internal/auth"
	"github.com/your-org/attendo/internal/face"
	"github.com/your-org/attendo/internal/models"
)

type okPinger struct{ err error }

func (p okPinger) Ping(context.Context) error { return p.err }

type okConnPinger struct{ err error }

func (p okConnPinger) Ping() error { return p.err }

func testRouter(h *FaceHandler) *gin.Engine {
	return NewRouter(h, handlers.NewSystemHandler(okPinger{}, okPinger{}, okConnPinger{}))
}

type stubEngine struct {
	enrollFn func(ctx context.Context, identity string, imageData []byte) ([]float32, error)
	verifyFn func(ctx context.Context, identity string, imageData []byte) (face.Result, error)
}

func (s *stubEngine) Enroll(ctx context.Context, identity string, imageData []byte) ([]float32, error) {
	return s.enrollFn(ctx, identity, imageData)
}

func (s *stubEngine) Verify(ctx context.Context, identity string, imageData []byte) (face.Result, error) {
	return s.verifyFn(ctx, identity, imageData)
}

type stubPublisher struct {
	events []*models.FaceEvent
}

func (p *stubPublisher) PublishFaceEvent(ctx context.Context, identity string, data interface{}) error {
	if ev, ok := data.(*models.FaceEvent); ok {
		p.events = append(p.events, ev)
	}
	return nil
}

func testAssertions() *auth.TokenManager {
	return auth.NewTokenManager([]byte("test-assertion-secret"), "attendo-test", time.Minute)
}

func faceForm(t *testing.T, identity string, image []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if identity != "" {
		if err := w.WriteField("identity", identity); err != nil {
			t.Fatal(err)
		}
	}
	if image != nil {
		fw, err := w.CreateFormFile("image", "face.jpg")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(image); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return body, w.FormDataContentType()
}

func doRequest(r http.Handler, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRegisterSuccess(t *testing.T) {
	engine := &stubEngine{
		enrollFn: func(ctx context.Context, identity string, imageData []byte) ([]float32, error) {
			if identity != "jdoe" {
				t.Errorf("identity = %q, want jdoe", identity)
			}
			return []float32{1, 2, 3}, nil
		},
	}
	pub := &stubPublisher{}
	r := testRouter(NewFaceHandler(engine, testAssertions(), pub, nil, 5, 0))

	body, ct := faceForm(t, "jdoe", []byte("jpeg-bytes"))
	rec := doRequest(r, http.MethodPost, "/register", body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success  bool   `json:"success"`
		Identity string `json:"identity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Success || resp.Identity != "jdoe" {
		t.Errorf("resp = %+v", resp)
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if pub.events[0].Type != models.FaceEventEnrolled {
		t.Errorf("event type = %s, want %s", pub.events[0].Type, models.FaceEventEnrolled)
	}
}

func TestRegisterNoFace(t *testing.T) {
	engine := &stubEngine{
		enrollFn: func(ctx context.Context, identity string, imageData []byte) ([]float32, error) {
			return nil, face.ErrNoFaceDetected
		},
	}
	r := testRouter(NewFaceHandler(engine, testAssertions(), nil, nil, 5, 0))

	body, ct := faceForm(t, "jdoe", []byte("not-a-face"))
	rec := doRequest(r, http.MethodPost, "/register", body, ct)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRegisterMissingIdentity(t *testing.T) {
	r := testRouter(NewFaceHandler(&stubEngine{}, testAssertions(), nil, nil, 5, 0))

	body, ct := faceForm(t, "", []byte("jpeg-bytes"))
	rec := doRequest(r, http.MethodPost, "/register", body, ct)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestRegisterMissingImage(t *testing.T) {
	r := testRouter(NewFaceHandler(&stubEngine{}, testAssertions(), nil, nil, 5, 0))

	body, ct := faceForm(t, "jdoe", nil)
	rec := doRequest(r, http.MethodPost, "/register", body, ct)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVerifyMatchIssuesAssertion(t *testing.T) {
	engine := &stubEngine{
		verifyFn: func(ctx context.Context, identity string, imageData []byte) (face.Result, error) {
			return face.Result{Match: true, Confidence: 0.82, Distance: 0.18}, nil
		},
	}
	pub := &stubPublisher{}
	assertions := testAssertions()
	r := testRouter(NewFaceHandler(engine, assertions, pub, nil, 5, 0))

	body, ct := faceForm(t, "jdoe", []byte("jpeg-bytes"))
	rec := doRequest(r, http.MethodPost, "/verify", body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Match      bool    `json:"match"`
		Confidence float64 `json:"confidence"`
		Identity   string  `json:"identity"`
		Assertion  string  `json:"assertion"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Match || resp.Identity != "jdoe" || resp.Confidence != 0.82 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Assertion == "" {
		t.Fatal("expected assertion token on match")
	}

	claims, err := assertions.Verify(auth.FaceAssertion, resp.Assertion)
	if err != nil {
		t.Fatalf("assertion does not verify: %v", err)
	}
	if claims.Subject != "jdoe" || claims.Confidence != 0.82 {
		t.Errorf("claims = %+v", claims)
	}

	if len(pub.events) != 1 || pub.events[0].Type != models.FaceEventVerified {
		t.Errorf("events = %+v", pub.events)
	}
}

func TestVerifyNoMatch(t *testing.T) {
	engine := &stubEngine{
		verifyFn: func(ctx context.Context, identity string, imageData []byte) (face.Result, error) {
			return face.Result{Match: false, Confidence: 0.25, Distance: 0.75}, nil
		},
	}
	pub := &stubPublisher{}
	r := testRouter(NewFaceHandler(engine, testAssertions(), pub, nil, 5, 0))

	body, ct := faceForm(t, "jdoe", []byte("jpeg-bytes"))
	rec := doRequest(r, http.MethodPost, "/verify", body, ct)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Match     bool   `json:"match"`
		Assertion string `json:"assertion"`
		Identity  string `json:"identity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Match {
		t.Error("expected no match")
	}
	if resp.Assertion != "" {
		t.Error("no assertion should be issued on mismatch")
	}
	if resp.Identity != "" {
		t.Error("identity should be omitted on mismatch")
	}

	if len(pub.events) != 1 || pub.events[0].Type != models.FaceEventRejected {
		t.Errorf("events = %+v", pub.events)
	}
}

func TestVerifyNotRegistered(t *testing.T) {
	engine := &stubEngine{
		verifyFn: func(ctx context.Context, identity string, imageData []byte) (face.Result, error) {
			return face.Result{}, face.ErrNotRegistered
		},
	}
	r := testRouter(NewFaceHandler(engine, testAssertions(), nil, nil, 5, 0))

	body, ct := faceForm(t, "ghost", []byte("jpeg-bytes"))
	rec := doRequest(r, http.MethodPost, "/verify", body, ct)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestVerifyOversizedUpload(t *testing.T) {
	engine := &stubEngine{
		verifyFn: func(ctx context.Context, identity string, imageData []byte) (face.Result, error) {
			t.Error("engine should not run for oversized uploads")
			return face.Result{}, nil
		},
	}
	r := testRouter(NewFaceHandler(engine, testAssertions(), nil, nil, 1, 0))

	body, ct := faceForm(t, "jdoe", bytes.Repeat([]byte("x"), 2<<20))
	rec := doRequest(r, http.MethodPost, "/verify", body, ct)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	r := testRouter(NewFaceHandler(&stubEngine{}, testAssertions(), nil, nil, 5, 0))

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestReadinessReportsFailure(t *testing.T) {
	r := NewRouter(
		NewFaceHandler(&stubEngine{}, testAssertions(), nil, nil, 5, 0),
		handlers.NewSystemHandler(okPinger{}, okPinger{}, okConnPinger{err: errors.New("nats down")}),
	)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestVerifyNoFaceDetected(t *testing.T) {
	engine := &stubEngine{
		verifyFn: func(ctx context.Context, identity string, imageData []byte) (face.Result, error) {
			return face.Result{}, face.ErrNoFaceDetected
		},
	}
	r := testRouter(NewFaceHandler(engine, testAssertions(), nil, nil, 5, 0))

	body, ct := faceForm(t, "jdoe", []byte("blank"))
	rec := doRequest(r, http.MethodPost, "/verify", body, ct)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
