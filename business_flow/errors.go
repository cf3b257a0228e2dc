// Package businessflow contains the core business logic and use cases for quote workflows
package businessflow

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
)

// Business flow error constants
var (
	// Customer-related errors
	ErrCustomerNotFound  = errors.New("customer not found")
	ErrAccountInactive   = errors.New("account is inactive")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrSessionNotFound   = errors.New("session not found")
	ErrSessionExpired    = errors.New("session has expired")

	// Quote-related errors
	ErrQuoteNotFound        = errors.New("quote not found")
	ErrQuoteAccessDenied    = errors.New("quote access denied")
	ErrQuoteNotEditable     = errors.New("quote cannot be modified in current status")
	ErrQuoteNotReviewable   = errors.New("quote is not awaiting review")
	ErrQuoteNotSendable     = errors.New("quote has no priced lines to send")
	ErrQuoteNotAcceptable   = errors.New("quote cannot be accepted in current status")
	ErrQuoteLineNotFound    = errors.New("quote line not found")
	ErrQuoteExpiredReadOnly = errors.New("quote has expired and is read-only")
	ErrLineLimitExceeded    = errors.New("quote line limit exceeded")

	// Pricing-related errors
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrUnknownLeadTier      = errors.New("unknown lead tier")
	ErrUnknownProcess       = errors.New("unknown manufacturing process")
	ErrManualQuoteRequired  = errors.New("part requires manual quoting")
	ErrNegativeComputedCost = errors.New("computed cost is negative")

	// Revision-related errors
	ErrQuoteVersionConflict  = errors.New("quote was modified by another request")
	ErrRepriceInProgress     = errors.New("a reprice is already in progress for this quote")
	ErrInvalidExtensionDays  = errors.New("extension days must be positive")
	ErrExtensionLimitReached = errors.New("extension exceeds the maximum allowed window")
	ErrQuoteNotExtendable    = errors.New("quote cannot be extended in current status")
	ErrQuoteNotRepriceable   = errors.New("quote cannot be repriced in current status")

	// Infrastructure errors
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrStoreUnavailable  = errors.New("store temporarily unavailable")

	// Filter errors
	ErrInvalidPage           = errors.New("page must be at least 1")
	ErrInvalidPageSize       = errors.New("page size must be between 1 and 100")
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// wrapTransient tags connectivity and timeout failures from the store or
// cache with ErrStoreUnavailable so handlers answer 503 and the caller can
// retry with backoff. Other errors pass through untouched.
func wrapTransient(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsQuoteNotFound(err error) bool {
	return errors.Is(err, ErrQuoteNotFound)
}

func IsQuoteAccessDenied(err error) bool {
	return errors.Is(err, ErrQuoteAccessDenied)
}

func IsQuoteVersionConflict(err error) bool {
	return errors.Is(err, ErrQuoteVersionConflict)
}

func IsRepriceInProgress(err error) bool {
	return errors.Is(err, ErrRepriceInProgress)
}

func IsStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

func IsQuoteExpiredReadOnly(err error) bool {
	return errors.Is(err, ErrQuoteExpiredReadOnly)
}

func IsManualQuoteRequired(err error) bool {
	return errors.Is(err, ErrManualQuoteRequired)
}
