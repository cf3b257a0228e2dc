package utils

import (
	"time"
)

// Token and session time constants
const (
	// AccessTokenTTL is the time-to-live for access tokens (24 hours)
	AccessTokenTTL = 24 * time.Hour

	// RefreshTokenTTL is the time-to-live for refresh tokens (7 days)
	RefreshTokenTTL = 7 * 24 * time.Hour

	// SessionTimeout is the default session timeout (24 hours)
	SessionTimeout = 24 * time.Hour
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)

// Quote lifecycle constants
const (
	USDCurrency = "USD"

	// DefaultQuoteExpiryDays is how long a freshly priced quote stays valid
	DefaultQuoteExpiryDays = 30

	// MaxExtensionDays caps a single expiration extension
	MaxExtensionDays = 90

	// AbandonedQuoteWindow is how long a draft may sit untouched before the
	// lifecycle scheduler marks it abandoned
	AbandonedQuoteWindow = 14 * 24 * time.Hour

	// RepriceLockTTL bounds how long a per-quote reprice lock may be held
	RepriceLockTTL = 30 * time.Second
)
