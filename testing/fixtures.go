// Package testing provides test utilities and database setup for testing the quoting platform
package testing

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	mathrand "math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/utils"
	"golang.org/x/crypto/bcrypt"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCustomer creates an active customer with a known password of TestPass123!
func (tf *TestFixtures) CreateTestCustomer() (*models.Customer, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("TestPass123!"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	suffix := mathrand.Intn(90000000) + 10000000

	customer := &models.Customer{
		UUID:            uuid.New(),
		FirstName:       "Jane",
		LastName:        "Machinist",
		Email:           fmt.Sprintf("jane.machinist.%d@example.com", suffix),
		PasswordHash:    string(hashedPassword),
		IsActive:        utils.ToPtr(true),
		IsEmailVerified: utils.ToPtr(true),
	}

	err = tf.DB.DB.Create(customer).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test customer: %w", err)
	}

	return customer, nil
}

// CreateInactiveCustomer creates a deactivated customer account
func (tf *TestFixtures) CreateInactiveCustomer() (*models.Customer, error) {
	customer, err := tf.CreateTestCustomer()
	if err != nil {
		return nil, err
	}

	customer.IsActive = utils.ToPtr(false)
	if err := tf.DB.DB.Save(customer).Error; err != nil {
		return nil, fmt.Errorf("failed to deactivate test customer: %w", err)
	}

	return customer, nil
}

// CreateTestQuote creates a quote in the given status for the customer
func (tf *TestFixtures) CreateTestQuote(customerID uint, status models.QuoteStatus) (*models.Quote, error) {
	quote := &models.Quote{
		UUID:       uuid.New(),
		CustomerID: customerID,
		Status:     status,
		Currency:   utils.USDCurrency,
		Version:    1,
	}

	err := tf.DB.DB.Create(quote).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test quote: %w", err)
	}

	return quote, nil
}

// CreateSentQuote creates a sent quote with a subtotal and an expiry this many days out
func (tf *TestFixtures) CreateSentQuote(customerID uint, subtotal float64, expiresInDays int) (*models.Quote, error) {
	expiresAt := utils.UTCNowAdd(time.Duration(expiresInDays) * 24 * time.Hour)

	quote := &models.Quote{
		UUID:       uuid.New(),
		CustomerID: customerID,
		Status:     models.QuoteStatusSent,
		Currency:   utils.USDCurrency,
		Subtotal:   subtotal,
		Version:    1,
		ExpiresAt:  &expiresAt,
	}

	err := tf.DB.DB.Create(quote).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create sent quote: %w", err)
	}

	return quote, nil
}

// CreateTestQuoteLine creates a machinable aluminum line on the quote
func (tf *TestFixtures) CreateTestQuoteLine(quoteID uint, quantity int) (*models.QuoteLine, error) {
	line := &models.QuoteLine{
		UUID:         uuid.New(),
		QuoteID:      quoteID,
		PartName:     fmt.Sprintf("bracket-%d", mathrand.Intn(10000)),
		FileKey:      fmt.Sprintf("uploads/%s.step", uuid.New()),
		Process:      "cnc-milling",
		Material:     "aluminum-6061",
		Finish:       "as-machined",
		Tolerance:    "standard",
		Quantity:     quantity,
		SelectedTier: models.LeadTierStandard,
		Geometry: models.Geometry{
			VolumeMm3:            42000,
			SurfaceAreaMm2:       18500,
			BBoxXMm:              120,
			BBoxYMm:              60,
			BBoxZMm:              25,
			MachiningTimeMinutes: 35,
			Complexity:           "moderate",
		},
	}

	err := tf.DB.DB.Create(line).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test quote line: %w", err)
	}

	return line, nil
}

// PriceTestLine stamps a pricing snapshot onto an existing line
func (tf *TestFixtures) PriceTestLine(line *models.QuoteLine, unitPrice float64) error {
	snapshot := &models.PricingSnapshot{
		MaterialCost:  unitPrice * 0.3,
		MachiningCost: unitPrice * 0.4,
		SetupCost:     unitPrice * 0.1,
		OverheadCost:  unitPrice * 0.1,
		MarginCost:    unitPrice * 0.1,
		UnitPrice:     unitPrice,
		TotalPrice:    unitPrice * float64(line.Quantity),
		LeadTimeDays:  7,
		PricedAt:      utils.UTCNow(),
	}

	line.Pricing = snapshot
	if err := tf.DB.DB.Save(line).Error; err != nil {
		return fmt.Errorf("failed to price test line: %w", err)
	}

	return nil
}

// CreateTestRevision creates a reprice revision row for the quote
func (tf *TestFixtures) CreateTestRevision(quoteID uint, fromVersion, toVersion int) (*models.QuoteRevision, error) {
	oldSubtotal := 100.0
	newSubtotal := 110.0

	revision := &models.QuoteRevision{
		UUID:          uuid.New(),
		QuoteID:       quoteID,
		Kind:          models.RevisionKindReprice,
		FromVersion:   fromVersion,
		ToVersion:     toVersion,
		ChangedFields: []string{"subtotal", "repriced_at"},
		OldSubtotal:   &oldSubtotal,
		NewSubtotal:   &newSubtotal,
		ActorType:     "customer",
	}

	err := tf.DB.DB.Create(revision).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test revision: %w", err)
	}

	return revision, nil
}

func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// CreateTestSession creates a test customer session
func (tf *TestFixtures) CreateTestSession(customerID uint) (*models.CustomerSession, error) {
	sessionToken, err := GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secure session token: %w", err)
	}

	refreshToken, err := GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secure refresh token: %w", err)
	}

	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	session := &models.CustomerSession{
		CorrelationID: uuid.New(),
		CustomerID:    customerID,
		SessionToken:  sessionToken,
		RefreshToken:  &refreshToken,
		ExpiresAt:     time.Now().Add(24 * time.Hour),
		IsActive:      utils.ToPtr(true),
		IPAddress:     &ipAddress,
		UserAgent:     &userAgent,
	}

	err = tf.DB.DB.Create(session).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test session: %w", err)
	}

	return session, nil
}

// CreateTestAuditLog creates a test audit log entry
func (tf *TestFixtures) CreateTestAuditLog(customerID *uint, action string, success bool) (*models.AuditLog, error) {
	description := fmt.Sprintf("Test %s action", action)
	ipAddress := "127.0.0.1"
	userAgent := "Test User Agent"

	audit := &models.AuditLog{
		CustomerID:  customerID,
		Action:      action,
		Description: &description,
		Success:     &success,
		IPAddress:   &ipAddress,
		UserAgent:   &userAgent,
	}

	if !success {
		errorMessage := "Test failed action"
		audit.ErrorMessage = &errorMessage
	}

	err := tf.DB.DB.Create(audit).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create test audit log: %w", err)
	}

	return audit, nil
}
