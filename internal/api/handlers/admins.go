package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/attendo/internal/auth"
	"github.com/your-org/attendo/internal/email"
	"github.com/your-org/attendo/internal/models"
	"github.com/your-org/attendo/internal/observability"
	"github.com/your-org/attendo/internal/storage"
	"github.com/your-org/attendo/pkg/dto"
)

type AdminHandler struct {
	db            *storage.PostgresStore
	minio         *storage.MinIOStore
	tokens        *auth.TokenManager
	mail          email.Service
	verifyBaseURL string
}

func NewAdminHandler(db *storage.PostgresStore, minio *storage.MinIOStore, tokens *auth.TokenManager, mail email.Service, verifyBaseURL string) *AdminHandler {
	return &AdminHandler{db: db, minio: minio, tokens: tokens, mail: mail, verifyBaseURL: verifyBaseURL}
}

// Register creates a new admin account and sends a verification email.
func (h *AdminHandler) Register(c *gin.Context) {
	var req dto.RegisterAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	admin := &models.Admin{
		OrganizationName: req.OrganizationName,
		Email:            strings.ToLower(req.Email),
		PasswordHash:     hash,
	}
	if err := h.db.CreateAdmin(c.Request.Context(), admin); err != nil {
		if err == storage.ErrDuplicate {
			c.JSON(http.StatusConflict, gin.H{"error": "admin with this email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.sendVerificationEmail(admin)

	c.JSON(http.StatusCreated, dto.AdminResponse{
		ID:               admin.ID,
		OrganizationName: admin.OrganizationName,
		Email:            admin.Email,
		Role:             admin.Role,
		EmailVerified:    admin.EmailVerified,
		CreatedAt:        dto.FormatTime(admin.CreatedAt),
	})
}

func (h *AdminHandler) sendVerificationEmail(admin *models.Admin) {
	token, err := h.tokens.Sign(auth.EmailVerify, auth.Claims{Subject: admin.Email})
	if err != nil {
		slog.Error("sign verification token", "error", err)
		return
	}
	url := h.verifyBaseURL + "/api/v1/admin/verify-email/" + token

	go func() {
		msg := email.Message{
			To:       admin.Email,
			ToName:   admin.OrganizationName,
			Subject:  "Verify Your Email",
			TextBody: "Open this link to verify your account: " + url,
			HTMLBody: `<h2>Email Verification</h2><p>Click below to verify your account:</p><a href="` + url + `">Verify Email</a>`,
		}
		if err := h.mail.Send(msg); err != nil {
			slog.Error("send verification email", "to", admin.Email, "error", err)
			return
		}
		observability.EmailsSent.WithLabelValues("verify").Inc()
	}()
}

// VerifyEmail completes the verification link flow.
func (h *AdminHandler) VerifyEmail(c *gin.Context) {
	claims, err := h.tokens.Verify(auth.EmailVerify, c.Param("token"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired verification link"})
		return
	}

	if err := h.db.MarkAdminEmailVerified(c.Request.Context(), claims.Subject); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "email verified"})
}

// Login authenticates an admin by email and password.
func (h *AdminHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}

	admin, err := h.db.GetAdminByEmail(c.Request.Context(), strings.ToLower(req.Email))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if admin == nil || !auth.CheckPassword(admin.PasswordHash, req.Password) {
		observability.LoginAttempts.WithLabelValues("password", "fail").Inc()
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}

	token, err := h.tokens.Sign(auth.AccessToken, auth.Claims{Subject: admin.ID.String(), Role: admin.Role})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	observability.LoginAttempts.WithLabelValues("password", "ok").Inc()

	setSessionCookie(c, token)
	c.JSON(http.StatusOK, dto.LoginResponse{AccessToken: token})
}

// AddEmployee registers a new employee with an optional profile picture.
func (h *AdminHandler) AddEmployee(c *gin.Context) {
	var req dto.RegisterEmployeeRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	emp := &models.Employee{
		Name:         req.Name,
		Username:     strings.ToLower(req.Username),
		Email:        strings.ToLower(req.Email),
		Position:     req.Position,
		Salary:       req.Salary,
		Address:      req.Address,
		PhoneNumber:  req.PhoneNumber,
		PasswordHash: hash,
	}

	// Profile picture is optional; stored in MinIO when present.
	if file, header, err := c.Request.FormFile("profilePicture"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "read profile picture failed"})
			return
		}
		emp.ID = uuid.New()
		key := storage.ProfilePictureKey(emp.ID, header.Filename)
		if err := h.minio.PutObject(c.Request.Context(), key, data, header.Header.Get("Content-Type")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store profile picture failed"})
			return
		}
		emp.ProfilePictureKey = key
	}

	if err := h.db.CreateEmployee(c.Request.Context(), emp); err != nil {
		if err == storage.ErrDuplicate {
			c.JSON(http.StatusConflict, gin.H{"error": "employee with this username or email already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.sendWelcomeEmail(emp)

	c.JSON(http.StatusCreated, employeeResponse(emp))
}

func (h *AdminHandler) sendWelcomeEmail(emp *models.Employee) {
	go func() {
		msg := email.Message{
			To:       emp.Email,
			ToName:   emp.Name,
			Subject:  "Welcome to Attendo",
			TextBody: "Hi " + emp.Name + ", your account " + emp.Username + " is ready. You can now sign in and register your face for attendance.",
		}
		if err := h.mail.Send(msg); err != nil {
			slog.Error("send welcome email", "to", emp.Email, "error", err)
			return
		}
		observability.EmailsSent.WithLabelValues("welcome").Inc()
	}()
}

// ListEmployees returns all employees with attendance and salary summary.
func (h *AdminHandler) ListEmployees(c *gin.Context) {
	employees, err := h.db.ListEmployees(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.EmployeeResponse, 0, len(employees))
	for i := range employees {
		resp = append(resp, employeeResponse(&employees[i]))
	}

	c.JSON(http.StatusOK, gin.H{"employees": resp, "total": len(resp)})
}

// GetEmployee returns one employee with attendance history.
func (h *AdminHandler) GetEmployee(c *gin.Context) {
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
	if emp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	}

	records, err := h.db.ListAttendance(c.Request.Context(), id, 100)
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

// DeleteEmployee removes an employee, their face credential and stored images.
func (h *AdminHandler) DeleteEmployee(c *gin.Context) {
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
	if emp == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "employee not found"})
		return
	}

	if err := h.db.DeleteEmployee(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if emp.ProfilePictureKey != "" {
		if err := h.minio.DeleteObject(c.Request.Context(), emp.ProfilePictureKey); err != nil {
			slog.Warn("delete profile picture", "key", emp.ProfilePictureKey, "error", err)
		}
	}
	if err := h.minio.DeletePrefix(c.Request.Context(), "enrollments/"+emp.Username+"/"); err != nil {
		slog.Warn("delete enrollment snapshots", "identity", emp.Username, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func employeeResponse(e *models.Employee) dto.EmployeeResponse {
	resp := dto.EmployeeResponse{
		ID:          e.ID,
		Name:        e.Name,
		Username:    e.Username,
		Email:       e.Email,
		Position:    e.Position,
		Salary:      e.Salary,
		Address:     e.Address,
		PhoneNumber: e.PhoneNumber,
		PresentDays: e.PresentDays,
		AbsentDays:  e.AbsentDays,
		CreatedAt:   dto.FormatTime(e.CreatedAt),
	}
	if e.ProfilePictureKey != "" {
		resp.ProfilePictureURL = "/api/v1/users/" + e.ID.String() + "/profile-picture"
	}
	return resp
}

func setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(auth.SessionCookie, token, 24*60*60, "/", "", false, true)
}
