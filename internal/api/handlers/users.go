package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/attendo/internal/auth"
	"github.com/your-org/attendo/internal/models"
	"github.com/your-org/attendo/internal/observability"
	"github.com/your-org/attendo/internal/storage"
	"github.com/your-org/attendo/pkg/dto"
)

// UserStore is the storage surface the employee endpoints need.
// *storage.PostgresStore satisfies it.
type UserStore interface {
	GetEmployee(ctx context.Context, id uuid.UUID) (*models.Employee, error)
	GetEmployeeByUsername(ctx context.Context, username string) (*models.Employee, error)
	MarkAttendance(ctx context.Context, employeeID uuid.UUID, day time.Time, status models.AttendanceStatus) (*models.AttendanceRecord, error)
	ListAttendance(ctx context.Context, employeeID uuid.UUID, limit int) ([]models.AttendanceRecord, error)
	UpdateEmployeePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

type UserHandler struct {
	db           UserStore
	minio        *storage.MinIOStore
	tokens       *auth.TokenManager
	assertions   *auth.TokenManager
	cutoffHour   int
	cutoffMinute int
}

func NewUserHandler(db UserStore, minio *storage.MinIOStore, tokens, assertions *auth.TokenManager, cutoffHour, cutoffMinute int) *UserHandler {
	return &UserHandler{
		db:           db,
		minio:        minio,
		tokens:       tokens,
		assertions:   assertions,
		cutoffHour:   cutoffHour,
		cutoffMinute: cutoffMinute,
	}
}

// Login authenticates an employee by username and password.
func (h *UserHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	emp, err := h.db.GetEmployeeByUsername(c.Request.Context(), strings.ToLower(req.Username))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if emp == nil || !auth.CheckPassword(emp.PasswordHash, req.Password) {
		observability.LoginAttempts.WithLabelValues("password", "fail").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, err := h.tokens.Sign(auth.AccessToken, auth.Claims{Subject: emp.ID.String(), Role: models.RoleEmployee})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	observability.LoginAttempts.WithLabelValues("password", "ok").Inc()

	setSessionCookie(c, token)
	c.JSON(http.StatusOK, dto.LoginResponse{AccessToken: token})
}

// FaceLogin exchanges a face assertion signed by the face service for
// a session. The identity comes from the validated assertion, so a
// caller cannot log in as an arbitrary username.
func (h *UserHandler) FaceLogin(c *gin.Context) {
	var req dto.FaceLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "assertion is required"})
		return
	}

	claims, err := h.assertions.Verify(auth.FaceAssertion, req.Assertion)
	if err != nil {
		observability.LoginAttempts.WithLabelValues("face", "fail").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired face assertion"})
		return
	}

	emp, err := h.db.GetEmployeeByUsername(c.Request.Context(), claims.Subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if emp == nil {
		observability.LoginAttempts.WithLabelValues("face", "fail").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	}

	token, err := h.tokens.Sign(auth.AccessToken, auth.Claims{Subject: emp.ID.String(), Role: models.RoleEmployee})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	observability.LoginAttempts.WithLabelValues("face", "ok").Inc()

	setSessionCookie(c, token)
	c.JSON(http.StatusOK, gin.H{
		"accessToken": token,
		"confidence":  claims.Confidence,
		"employee":    employeeResponse(emp),
	})
}

// MarkAttendance records today's attendance for the authenticated
// employee. A second mark on the same day returns 409.
func (h *UserHandler) MarkAttendance(c *gin.Context) {
	emp := h.currentEmployee(c)
	if emp == nil {
		return
	}

	now := time.Now()
	status := models.AttendanceStatusAt(now, h.cutoffHour, h.cutoffMinute)

	rec, err := h.db.MarkAttendance(c.Request.Context(), emp.ID, now, status)
	if err != nil {
		if err == storage.ErrDuplicate {
			c.JSON(http.StatusConflict, gin.H{"error": "attendance already marked for today"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	observability.AttendanceMarked.WithLabelValues(string(status)).Inc()

	c.JSON(http.StatusOK, dto.MarkAttendanceResponse{
		PresentDays: emp.PresentDays + 1,
		Status:      string(rec.Status),
		Date:        rec.Date.Format("2006-01-02"),
	})
}

// ChangePassword updates the authenticated employee's password after
// checking the current one.
func (h *UserHandler) ChangePassword(c *gin.Context) {
	emp := h.currentEmployee(c)
	if emp == nil {
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !auth.CheckPassword(emp.PasswordHash, req.OldPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "old password is incorrect"})
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.db.UpdateEmployeePassword(c.Request.Context(), emp.ID, hash); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "password changed"})
}

// Me returns the authenticated employee's profile with recent attendance.
func (h *UserHandler) Me(c *gin.Context) {
	emp := h.currentEmployee(c)
	if emp == nil {
		return
	}

	records, err := h.db.ListAttendance(c.Request.Context(), emp.ID, 31)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	history := make([]dto.AttendanceRecordResponse, 0, len(records))
	for _, r := range records {
		history = append(history, dto.AttendanceRecordResponse{
			Date:     r.Date.Format("2006-01-02"),
			Status:   string(r.Status),
			MarkedAt: dto.FormatTime(r.MarkedAt),
		})
	}

	c.JSON(http.StatusOK, dto.EmployeeDetailResponse{
		EmployeeResponse:  employeeResponse(emp),
		AttendanceHistory: history,
	})
}

// ProfilePicture streams the stored profile image for an employee.
func (h *UserHandler) ProfilePicture(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid employee id"})
		return
	}

	emp, err := h.db.GetEmployee(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if emp == nil || emp.ProfilePictureKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile picture not found"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), emp.ProfilePictureKey)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile picture not found"})
		return
	}

	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *UserHandler) currentEmployee(c *gin.Context) *models.Employee {
	claims, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return nil
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session"})
		return nil
	}

	emp, err := h.db.GetEmployee(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil
	}
	if emp == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "employee not found"})
		return nil
	}
	return emp
}
