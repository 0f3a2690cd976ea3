package models

import (
	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// User represents a user in the system
type User struct {
	BaseModel
	Email    string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password string `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	Name     string `gorm:"size:100;not null" json:"name"`
	Role     Role   `gorm:"size:20;default:'patient'" json:"role"`

	// Shared profile fields
	Phone    string `gorm:"size:30" json:"phone,omitempty"`
	Photo    string `gorm:"size:512" json:"photo,omitempty"`
	PhotoKey string `gorm:"size:512" json:"-"` // blob store handle for the photo

	// Patient profile
	Address        string        `gorm:"size:255" json:"address,omitempty"`
	Gender         string        `gorm:"size:20" json:"gender,omitempty"`
	Age            *int          `json:"age,omitempty"`
	MedicalHistory string        `gorm:"type:text" json:"medicalHistory,omitempty"`
	EmergencyInfo  EmergencyInfo `gorm:"embedded;embeddedPrefix:emergency_" json:"emergencyInfo"`

	// Doctor profile
	Designation    string `gorm:"size:100" json:"designation,omitempty"`
	Department     string `gorm:"size:100" json:"department,omitempty"`
	Specialization string `gorm:"size:100" json:"specialization,omitempty"`

	// Relations (not always preloaded)
	RefreshTokens []RefreshToken `gorm:"foreignKey:UserID" json:"-"`
	Records       []Record       `gorm:"foreignKey:UserID" json:"-"`
}

// EmergencyInfo holds the at-a-glance data shown on a patient's emergency card.
type EmergencyInfo struct {
	BloodGroup    string `gorm:"size:10" json:"bloodGroup,omitempty"`
	Allergies     string `gorm:"size:255" json:"allergies,omitempty"`
	ContactNumber string `gorm:"size:30" json:"contactNumber,omitempty"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID             string        `json:"id"`
	Email          string        `json:"email"`
	Name           string        `json:"name"`
	Role           Role          `json:"role"`
	Phone          string        `json:"phone,omitempty"`
	Photo          string        `json:"photo,omitempty"`
	Address        string        `json:"address,omitempty"`
	Gender         string        `json:"gender,omitempty"`
	Age            *int          `json:"age,omitempty"`
	MedicalHistory string        `json:"medicalHistory,omitempty"`
	EmergencyInfo  EmergencyInfo `json:"emergencyInfo"`
	Designation    string        `json:"designation,omitempty"`
	Department     string        `json:"department,omitempty"`
	Specialization string        `json:"specialization,omitempty"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:             u.ID,
		Email:          u.Email,
		Name:           u.Name,
		Role:           u.Role,
		Phone:          u.Phone,
		Photo:          u.Photo,
		Address:        u.Address,
		Gender:         u.Gender,
		Age:            u.Age,
		MedicalHistory: u.MedicalHistory,
		EmergencyInfo:  u.EmergencyInfo,
		Designation:    u.Designation,
		Department:     u.Department,
		Specialization: u.Specialization,
	}
}
