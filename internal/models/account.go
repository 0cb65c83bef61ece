package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin    = "ADMIN"
	RoleEmployee = "EMPLOYEE"
)

type Admin struct {
	ID               uuid.UUID `json:"id" db:"id"`
	OrganizationName string    `json:"organization_name" db:"organization_name"`
	Email            string    `json:"email" db:"email"`
	PasswordHash     string    `json:"-" db:"password_hash"`
	Role             string    `json:"role" db:"role"`
	EmailVerified    bool      `json:"email_verified" db:"email_verified"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

type Employee struct {
	ID                uuid.UUID `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Username          string    `json:"username" db:"username"`
	Email             string    `json:"email" db:"email"`
	ProfilePictureKey string    `json:"-" db:"profile_picture_key"`
	Position          string    `json:"position" db:"position"`
	Salary            float64   `json:"salary" db:"salary"`
	Address           string    `json:"address" db:"address"`
	PhoneNumber       string    `json:"phone_number" db:"phone_number"`
	PasswordHash      string    `json:"-" db:"password_hash"`
	PresentDays       int       `json:"present_days" db:"present_days"`
	AbsentDays        int       `json:"absent_days" db:"absent_days"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}
