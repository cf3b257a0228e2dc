// Package dto contains Data Transfer Objects for API request and response structures
package dto

import (
	"time"
)

// LoginRequest represents the request payload for customer login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=255" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=8,max=100" example:"SecurePass123!"`
}

// CustomerInfo represents customer information returned in login responses
type CustomerInfo struct {
	ID              uint   `json:"id" example:"123"`
	UUID            string `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	Email           string `json:"email" example:"user@example.com"`
	FirstName       string `json:"first_name" example:"John"`
	LastName        string `json:"last_name" example:"Doe"`
	CompanyName     string `json:"company_name,omitempty" example:"Kajiya Works Ltd"`
	IsActive        *bool  `json:"is_active" example:"true"`
	IsEmailVerified *bool  `json:"is_email_verified" example:"true"`
	CreatedAt       string `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

// LoginResponse represents the successful login response
type LoginResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Login successful"`
	Data    struct {
		AccessToken  string       `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
		RefreshToken string       `json:"refresh_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
		TokenType    string       `json:"token_type" example:"Bearer"`
		ExpiresIn    int          `json:"expires_in" example:"3600"`
		Customer     CustomerInfo `json:"customer"`
		ExpiresAt    time.Time    `json:"expires_at" example:"2024-01-15T16:30:00Z"`
	} `json:"data"`
}

// SetCustomerInfo fills the nested customer block of a login response
func (dto *LoginResponse) SetCustomerInfo(customerID uint, uuid, email, firstName, lastName string, companyName *string, isActive, isEmailVerified *bool, createdAt time.Time) {
	dto.Data.Customer = CustomerInfo{
		ID:              customerID,
		UUID:            uuid,
		Email:           email,
		FirstName:       firstName,
		LastName:        lastName,
		IsActive:        isActive,
		IsEmailVerified: isEmailVerified,
		CreatedAt:       createdAt.Format(time.RFC3339),
	}

	if companyName != nil {
		dto.Data.Customer.CompanyName = *companyName
	}
}

// RefreshTokenRequest represents the request to rotate an access token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest represents the request to end the current session
type LogoutRequest struct {
	CustomerID uint `json:"-"`
}

// LogoutResponse represents the response after logout
type LogoutResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Logged out"`
}

// Common error codes for login operations
const (
	ErrorCustomerNotFound  = "CUSTOMER_NOT_FOUND"
	ErrorIncorrectPassword = "INCORRECT_PASSWORD"
	ErrorAccountInactive   = "ACCOUNT_INACTIVE"
	ErrorSessionExpired    = "SESSION_EXPIRED"
)
