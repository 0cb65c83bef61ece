package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FacesEnrolled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendo",
		Name:      "faces_enrolled_total",
		Help:      "Total number of face credentials registered or overwritten",
	})

	FaceVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendo",
		Name:      "face_verifications_total",
		Help:      "Total number of face verification attempts by outcome",
	}, []string{"result"}) // match, no_match, not_registered, no_face, error

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attendo",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	AttendanceMarked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendo",
		Name:      "attendance_marked_total",
		Help:      "Total attendance records created by status",
	}, []string{"status"})

	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendo",
		Name:      "login_attempts_total",
		Help:      "Login attempts by method and outcome",
	}, []string{"method", "result"}) // method: password, face; result: ok, fail

	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendo",
		Name:      "emails_sent_total",
		Help:      "Emails handed to the delivery provider",
	}, []string{"kind"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "attendo",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "attendo",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
