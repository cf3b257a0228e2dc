// Package models contains domain entities and business models for the quoting platform
package models

import (
	"time"

	"github.com/google/uuid"
)

type Customer struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_customers_uuid" json:"uuid"`

	FirstName string `gorm:"size:255;not null" json:"first_name"`
	LastName  string `gorm:"size:255;not null" json:"last_name"`

	// Optional company fields for business buyers
	CompanyName *string `gorm:"size:120" json:"company_name,omitempty"`
	Phone       *string `gorm:"size:20" json:"phone,omitempty"`

	Email        string `gorm:"size:255;not null;uniqueIndex:idx_customers_email" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"` // Never serialize password hash

	IsEmailVerified *bool `gorm:"default:false" json:"is_email_verified"`
	IsActive        *bool `gorm:"default:true;index:idx_customers_is_active" json:"is_active"`

	// Timestamps
	CreatedAt       time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_customers_created_at" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	LastLoginAt     *time.Time `gorm:"index:idx_customers_last_login_at" json:"last_login_at,omitempty"`

	// Relations
	Quotes    []Quote           `gorm:"foreignKey:CustomerID" json:"quotes,omitempty"`
	Sessions  []CustomerSession `gorm:"foreignKey:CustomerID" json:"-"`
	AuditLogs []AuditLog        `gorm:"foreignKey:CustomerID" json:"-"`
}

func (Customer) TableName() string {
	return "customers"
}

// CustomerFilter represents filter criteria for customer queries
type CustomerFilter struct {
	ID              *uint
	UUID            *uuid.UUID
	Email           *string
	CompanyName     *string
	IsEmailVerified *bool
	IsActive        *bool
	CreatedAfter    *time.Time
	CreatedBefore   *time.Time
}
