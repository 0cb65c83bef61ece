package dto

import (
	"time"

	"github.com/google/uuid"
)

type RegisterAdminRequest struct {
	OrganizationName string `json:"organizationName" binding:"required"`
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
}

type AdminResponse struct {
	ID               uuid.UUID `json:"id"`
	OrganizationName string    `json:"organizationName"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	EmailVerified    bool      `json:"emailVerified"`
	CreatedAt        string    `json:"createdAt"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
}

// RegisterEmployeeRequest is bound from multipart form fields; the
// profile picture arrives as the "profilePicture" file part.
type RegisterEmployeeRequest struct {
	Name        string  `form:"name" binding:"required"`
	Username    string  `form:"username" binding:"required"`
	Email       string  `form:"email" binding:"required,email"`
	Password    string  `form:"password" binding:"required,min=8"`
	Position    string  `form:"position"`
	Salary      float64 `form:"salary"`
	Address     string  `form:"address"`
	PhoneNumber string  `form:"phoneNumber"`
}

type EmployeeResponse struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	Position          string    `json:"position"`
	Salary            float64   `json:"salary"`
	Address           string    `json:"address"`
	PhoneNumber       string    `json:"phoneNumber"`
	PresentDays       int       `json:"presentDays"`
	AbsentDays        int       `json:"absentDays"`
	ProfilePictureURL string    `json:"profilePictureUrl,omitempty"`
	CreatedAt         string    `json:"createdAt"`
}

type AttendanceRecordResponse struct {
	Date     string `json:"date"`
	Status   string `json:"status"`
	MarkedAt string `json:"markedAt"`
}

type EmployeeDetailResponse struct {
	EmployeeResponse
	AttendanceHistory []AttendanceRecordResponse `json:"attendanceHistory"`
}

type MarkAttendanceResponse struct {
	PresentDays int    `json:"presentDays"`
	Status      string `json:"status"`
	Date        string `json:"date"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

// FaceLoginRequest carries the assertion token signed by the face
// service; the identity is taken from the validated token, never from
// the request body.
type FaceLoginRequest struct {
	Assertion string `json:"assertion" binding:"required"`
}

func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
