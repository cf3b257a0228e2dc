// Package businessflow contains the core business logic and use cases for authentication workflows
package businessflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kajiya-works/kajiya/app/dto"
	"github.com/kajiya-works/kajiya/app/services"
	"github.com/kajiya-works/kajiya/models"
	"github.com/kajiya-works/kajiya/repository"
	"github.com/kajiya-works/kajiya/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// LoginFlow handles customer authentication operations
type LoginFlow interface {
	Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	RefreshToken(ctx context.Context, request *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.LoginResponse, error)
	Logout(ctx context.Context, request *dto.LogoutRequest, metadata *ClientMetadata) (*dto.LogoutResponse, error)
}

// LoginFlowImpl implements the login business flow
type LoginFlowImpl struct {
	customerRepo repository.CustomerRepository
	sessionRepo  repository.CustomerSessionRepository
	auditRepo    repository.AuditLogRepository
	tokenService services.TokenService
	db           *gorm.DB
}

// NewLoginFlow creates a new login flow instance
func NewLoginFlow(
	customerRepo repository.CustomerRepository,
	sessionRepo repository.CustomerSessionRepository,
	auditRepo repository.AuditLogRepository,
	tokenService services.TokenService,
	db *gorm.DB,
) LoginFlow {
	return &LoginFlowImpl{
		customerRepo: customerRepo,
		sessionRepo:  sessionRepo,
		auditRepo:    auditRepo,
		tokenService: tokenService,
		db:           db,
	}
}

// Login authenticates a customer with email and password
func (lf *LoginFlowImpl) Login(ctx context.Context, request *dto.LoginRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	var customer *models.Customer

	resp, err := lf.WithLoginTransaction(ctx, func(ctx context.Context) (*dto.LoginResponse, error) {
		var err error
		customer, err = lf.customerRepo.ByEmail(ctx, strings.TrimSpace(request.Email))
		if err != nil {
			return nil, err
		}
		if customer == nil {
			return nil, ErrCustomerNotFound
		}

		if !utils.IsTrue(customer.IsActive) {
			return nil, ErrAccountInactive
		}

		if err := bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(request.Password)); err != nil {
			return nil, ErrIncorrectPassword
		}

		session, err := lf.CreateSession(ctx, customer.ID, metadata)
		if err != nil {
			return nil, err
		}

		if err := lf.customerRepo.UpdateLastLogin(ctx, customer.ID, utils.UTCNow()); err != nil {
			return nil, err
		}

		return lf.buildLoginResponse(customer, session), nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("Login failed: %s", err.Error())
		_ = lf.LogLoginAttempt(ctx, customer, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("LOGIN_FAILED", "Login failed", err)
	}

	msg := fmt.Sprintf("Customer logged in successfully: %d", customer.ID)
	_ = lf.LogLoginAttempt(ctx, customer, models.AuditActionLoginSuccess, msg, true, nil, metadata)

	return resp, nil
}

// RefreshToken rotates the access and refresh tokens for an active session
func (lf *LoginFlowImpl) RefreshToken(ctx context.Context, request *dto.RefreshTokenRequest, metadata *ClientMetadata) (*dto.LoginResponse, error) {
	var customer *models.Customer

	resp, err := lf.WithLoginTransaction(ctx, func(ctx context.Context) (*dto.LoginResponse, error) {
		session, err := lf.sessionRepo.ByRefreshToken(ctx, request.RefreshToken)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
		if session.IsExpired() {
			return nil, ErrSessionExpired
		}

		customer = &session.Customer
		if !utils.IsTrue(customer.IsActive) {
			return nil, ErrAccountInactive
		}

		if _, _, err := lf.tokenService.RefreshToken(request.RefreshToken); err != nil {
			return nil, ErrSessionExpired
		}

		// Retire the old session and issue a fresh one so the previous
		// refresh token cannot be replayed.
		if err := lf.sessionRepo.ExpireSession(ctx, session.ID); err != nil {
			return nil, err
		}

		newSession, err := lf.CreateSession(ctx, customer.ID, metadata)
		if err != nil {
			return nil, err
		}

		return lf.buildLoginResponse(customer, newSession), nil
	})

	if err != nil {
		errMsg := fmt.Sprintf("Token refresh failed: %s", err.Error())
		_ = lf.LogLoginAttempt(ctx, customer, models.AuditActionLoginFailed, errMsg, false, &errMsg, metadata)

		return nil, NewBusinessError("TOKEN_REFRESH_FAILED", "Token refresh failed", err)
	}

	msg := fmt.Sprintf("Tokens refreshed successfully: %d", customer.ID)
	_ = lf.LogLoginAttempt(ctx, customer, models.AuditActionLoginSuccess, msg, true, nil, metadata)

	return resp, nil
}

// Logout ends every active session for the customer
func (lf *LoginFlowImpl) Logout(ctx context.Context, request *dto.LogoutRequest, metadata *ClientMetadata) (*dto.LogoutResponse, error) {
	customer, err := lf.customerRepo.ByID(ctx, request.CustomerID)
	if err != nil {
		return nil, NewBusinessError("LOGOUT_FAILED", "Logout failed", err)
	}
	if customer == nil {
		return nil, NewBusinessError("CUSTOMER_NOT_FOUND", "Customer not found", ErrCustomerNotFound)
	}

	if err := lf.sessionRepo.ExpireAllCustomerSessions(ctx, customer.ID); err != nil {
		return nil, NewBusinessError("LOGOUT_FAILED", "Logout failed", err)
	}

	msg := fmt.Sprintf("Customer logged out: %d", customer.ID)
	_ = lf.LogLoginAttempt(ctx, customer, models.AuditActionLogout, msg, true, nil, metadata)

	return &dto.LogoutResponse{
		Success: true,
		Message: "Logged out",
	}, nil
}

// Private helper methods

func (lf *LoginFlowImpl) CreateSession(ctx context.Context, customerID uint, metadata *ClientMetadata) (*models.CustomerSession, error) {
	accessToken, refreshToken, err := lf.tokenService.GenerateTokens(customerID)
	if err != nil {
		return nil, err
	}

	expiresAt := utils.UTCNowAdd(utils.SessionTimeout)

	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	session := &models.CustomerSession{
		CustomerID:    customerID,
		CorrelationID: uuid.New(),
		SessionToken:  accessToken,
		RefreshToken:  &refreshToken,
		ExpiresAt:     expiresAt,
		IsActive:      utils.ToPtr(true),
		IPAddress:     &ipAddress,
		UserAgent:     &userAgent,
	}

	err = lf.sessionRepo.Save(ctx, session)
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (lf *LoginFlowImpl) buildLoginResponse(customer *models.Customer, session *models.CustomerSession) *dto.LoginResponse {
	resp := &dto.LoginResponse{
		Success: true,
		Message: "Login successful",
	}
	resp.Data.AccessToken = session.SessionToken
	if session.RefreshToken != nil {
		resp.Data.RefreshToken = *session.RefreshToken
	}
	resp.Data.TokenType = "Bearer"
	resp.Data.ExpiresIn = int(time.Until(session.ExpiresAt).Seconds())
	resp.Data.ExpiresAt = session.ExpiresAt
	resp.SetCustomerInfo(
		customer.ID,
		customer.UUID.String(),
		customer.Email,
		customer.FirstName,
		customer.LastName,
		customer.CompanyName,
		customer.IsActive,
		customer.IsEmailVerified,
		customer.CreatedAt,
	)
	return resp
}

func (lf *LoginFlowImpl) LogLoginAttempt(ctx context.Context, customer *models.Customer, action string, description string, success bool, errMsg *string, metadata *ClientMetadata) error {
	var customerID *uint
	if customer != nil {
		customerID = &customer.ID
	}

	ipAddress := "127.0.0.1"
	userAgent := ""
	if metadata != nil {
		ipAddress = metadata.IPAddress
		userAgent = metadata.UserAgent
	}

	audit := &models.AuditLog{
		CustomerID:   customerID,
		Action:       action,
		Description:  &description,
		Success:      utils.ToPtr(success),
		IPAddress:    &ipAddress,
		UserAgent:    &userAgent,
		ErrorMessage: errMsg,
	}

	requestID := ctx.Value(utils.RequestIDKey)
	if requestID != nil {
		requestIDStr, ok := requestID.(string)
		if ok {
			audit.RequestID = &requestIDStr
		}
	}

	return lf.auditRepo.Save(ctx, audit)
}

func (lf *LoginFlowImpl) WithLoginTransaction(ctx context.Context, fn func(context.Context) (*dto.LoginResponse, error)) (*dto.LoginResponse, error) {
	var result *dto.LoginResponse
	var fnErr error

	err := repository.WithTransaction(ctx, lf.db, func(ctx context.Context) error {
		result, fnErr = fn(ctx)
		return fnErr
	})

	if err != nil {
		return nil, err
	}
	return result, fnErr
}
