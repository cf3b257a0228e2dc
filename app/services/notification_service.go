// Package services provides external service integrations and technical concerns like notifications and tokens
package services

import (
	"fmt"
	"log"
	"strings"
)

// NotificationService handles customer-facing quote emails
type NotificationService interface {
	SendEmail(email, subject, message string) error
	SendQuoteSent(email, quoteUUID string, subtotal float64, expiresAt string) error
	SendExpiryWarning(email, quoteUUID string, daysLeft int) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	emailProvider EmailProvider
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(email, subject, message string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(emailProvider EmailProvider) NotificationService {
	return &NotificationServiceImpl{
		emailProvider: emailProvider,
	}
}

// SendEmail sends an email to the specified email address
func (s *NotificationServiceImpl) SendEmail(email, subject, message string) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}

	if len(email) == 0 || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %s", email)
	}

	return s.emailProvider.SendEmail(email, subject, message)
}

// SendQuoteSent notifies the customer that their quote is ready
func (s *NotificationServiceImpl) SendQuoteSent(email, quoteUUID string, subtotal float64, expiresAt string) error {
	subject := "Your quote is ready"
	message := fmt.Sprintf("Quote %s is ready for review. Total: $%.2f. This quote is valid until %s.", quoteUUID, subtotal, expiresAt)
	return s.SendEmail(email, subject, message)
}

// SendExpiryWarning notifies the customer that their quote expires soon
func (s *NotificationServiceImpl) SendExpiryWarning(email, quoteUUID string, daysLeft int) error {
	subject := "Your quote expires soon"
	message := fmt.Sprintf("Quote %s expires in %d day(s). Accept it or request an extension to keep the pricing.", quoteUUID, daysLeft)
	return s.SendEmail(email, subject, message)
}

type MockEmailProvider struct{}

func NewMockEmailProvider() EmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(email, subject, message string) error {
	log.Printf("Email sent to %s [%s]: %s", email, subject, message)
	return nil
}

type SMTPEmailProvider struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
}

func NewSMTPEmailProvider(host string, port int, username, password, fromEmail string) EmailProvider {
	return &SMTPEmailProvider{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromEmail: fromEmail,
	}
}

func (p *SMTPEmailProvider) SendEmail(email, subject, message string) error {
	// Implementation would use net/smtp or a library like gomail

	log.Printf("Sending email via SMTP to %s [%s]: %s", email, subject, message)

	return nil
}
