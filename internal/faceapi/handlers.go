package faceapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/attendo/internal/auth"
	"github.com/your-org/attendo/internal/face"
	"github.com/your-org/attendo/internal/models"
	"github.com/your-org/attendo/internal/observability"
	"github.com/your-org/attendo/internal/storage"
	"github.com/your-org/attendo/pkg/dto"
)

// Verifier is the face engine surface the handlers need. Satisfied by
// *face.Engine; stubbed in tests.
type Verifier interface {
	Enroll(ctx context.Context, identity string, imageData []byte) ([]float32, error)
	Verify(ctx context.Context, identity string, imageData []byte) (face.Result, error)
}

// EventPublisher pushes face events to the queue. Satisfied by
// *queue.Producer.
type EventPublisher interface {
	PublishFaceEvent(ctx context.Context, identity string, data interface{}) error
}

type FaceHandler struct {
	engine     Verifier
	assertions *auth.TokenManager
	producer   EventPublisher
	minio      *storage.MinIOStore
	maxUpload  int64
	// sem bounds concurrent inference requests; nil means unbounded.
	sem chan struct{}
}

func NewFaceHandler(engine Verifier, assertions *auth.TokenManager, producer EventPublisher, minio *storage.MinIOStore, maxUploadMB, maxInFlight int) *FaceHandler {
	h := &FaceHandler{
		engine:     engine,
		assertions: assertions,
		producer:   producer,
		minio:      minio,
		maxUpload:  int64(maxUploadMB) << 20,
	}
	if maxInFlight > 0 {
		h.sem = make(chan struct{}, maxInFlight)
	}
	return h
}

// Register enrolls a face image for an identity, overwriting any
// previous credential.
func (h *FaceHandler) Register(c *gin.Context) {
	identity, imageData, ok := h.readFaceForm(c)
	if !ok {
		return
	}

	h.acquire()
	_, err := h.engine.Enroll(c.Request.Context(), identity, imageData)
	h.release()
	if err != nil {
		if errors.Is(err, face.ErrNoFaceDetected) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no face detected in image"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	observability.FacesEnrolled.Inc()

	snapshotKey := h.storeSnapshot(c.Request.Context(), identity, imageData)
	h.publishEvent(&models.FaceEvent{
		Type:        models.FaceEventEnrolled,
		Identity:    identity,
		Match:       true,
		Confidence:  1,
		SnapshotKey: snapshotKey,
	})

	c.JSON(http.StatusOK, dto.RegisterFaceResponse{
		Success:  true,
		Message:  "face registered",
		Identity: identity,
	})
}

// Verify checks a face image against the stored credential for the
// claimed identity. On a match it returns a short-lived assertion token
// the API service exchanges for a session.
func (h *FaceHandler) Verify(c *gin.Context) {
	identity, imageData, ok := h.readFaceForm(c)
	if !ok {
		return
	}

	h.acquire()
	result, err := h.engine.Verify(c.Request.Context(), identity, imageData)
	h.release()
	if err != nil {
		switch {
		case errors.Is(err, face.ErrNotRegistered):
			observability.FaceVerifications.WithLabelValues("not_registered").Inc()
			c.JSON(http.StatusNotFound, gin.H{"error": "face not registered for this identity"})
		case errors.Is(err, face.ErrNoFaceDetected):
			observability.FaceVerifications.WithLabelValues("no_face").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "no face detected in image"})
		default:
			observability.FaceVerifications.WithLabelValues("error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	resp := dto.VerifyFaceResponse{
		Success:    true,
		Match:      result.Match,
		Confidence: result.Confidence,
	}

	eventType := models.FaceEventRejected
	if result.Match {
		observability.FaceVerifications.WithLabelValues("match").Inc()
		eventType = models.FaceEventVerified
		resp.Identity = identity
		resp.Message = "face verified"

		assertion, err := h.assertions.Sign(auth.FaceAssertion, auth.Claims{
			Subject:    identity,
			Confidence: result.Confidence,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		resp.Assertion = assertion
	} else {
		observability.FaceVerifications.WithLabelValues("no_match").Inc()
		resp.Message = "face does not match"
	}

	h.publishEvent(&models.FaceEvent{
		Type:       eventType,
		Identity:   identity,
		Match:      result.Match,
		Confidence: result.Confidence,
		Distance:   result.Distance,
	})

	c.JSON(http.StatusOK, resp)
}

// readFaceForm extracts the identity field and image file from a
// multipart request, enforcing the upload size limit.
func (h *FaceHandler) readFaceForm(c *gin.Context) (string, []byte, bool) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	// Parse the form up front so the size cap surfaces as 413 rather
	// than as a missing-field 400.
	if err := c.Request.ParseMultipartForm(h.maxUpload); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
			return "", nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return "", nil, false
	}

	identity := c.PostForm("identity")
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity is required"})
		return "", nil, false
	}

	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return "", nil, false
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return "", nil, false
	}

	return identity, imageData, true
}

func (h *FaceHandler) acquire() {
	if h.sem != nil {
		h.sem <- struct{}{}
	}
}

func (h *FaceHandler) release() {
	if h.sem != nil {
		<-h.sem
	}
}

func (h *FaceHandler) storeSnapshot(ctx context.Context, identity string, imageData []byte) string {
	if h.minio == nil {
		return ""
	}
	key := storage.EnrollmentKey(identity)
	if err := h.minio.PutObject(ctx, key, imageData, "image/jpeg"); err != nil {
		slog.Warn("store enrollment snapshot", "identity", identity, "error", err)
		return ""
	}
	return key
}

func (h *FaceHandler) publishEvent(ev *models.FaceEvent) {
	if h.producer == nil {
		return
	}
	ev.ID = uuid.New()
	ev.OccurredAt = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.producer.PublishFaceEvent(ctx, ev.Identity, ev); err != nil {
		slog.Error("publish face event", "identity", ev.Identity, "type", ev.Type, "error", err)
	}
}
