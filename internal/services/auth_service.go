// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/idsee/registry-backend/internal/config"
	"github.com/idsee/registry-backend/internal/metrics"
	"github.com/idsee/registry-backend/internal/models"
	"github.com/idsee/registry-backend/internal/repository"
	"github.com/idsee/registry-backend/internal/utils"
)

type AuthService struct {
	store   repository.Store
	ledger  *LedgerService
	cfg     *config.Config
	metrics *metrics.Metrics
	now     func() time.Time
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Email          string      `json:"email" validate:"required,email"`
	Password       string      `json:"password" validate:"required,min=8"`
	Role           models.Role `json:"role" validate:"omitempty,oneof=BUYER BREEDER VET CHIPPER"`
	ProfessionalID string      `json:"professional_id,omitempty" validate:"max=100"`
}

type AuthResponse struct {
	User        *models.User `json:"user"`
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"` // in seconds
}

// Email verification tokens are valid for a day.
const emailVerifyTTL = 24 * time.Hour

type VerifyEmailRequest struct {
	Token string `json:"token" validate:"required"`
}

type EmailVerificationResponse struct {
	ExpiresAt time.Time `json:"expires_at"`
	// DevToken is only returned outside production, where no email is sent.
	DevToken string `json:"dev_token,omitempty"`
}

func NewAuthService(store repository.Store, ledger *LedgerService, cfg *config.Config, m *metrics.Metrics) *AuthService {
	return &AuthService{
		store:   store,
		ledger:  ledger,
		cfg:     cfg,
		metrics: m,
		now:     time.Now,
	}
}

// Register creates an account. Buyers start verified with no credits;
// professionals start pending with the starter credits on their ledger.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	role := req.Role
	if role == "" {
		role = models.RoleBuyer
	}
	if role == models.RoleAdmin {
		return nil, ErrInvalidRole
	}

	user := &models.User{
		Email:              strings.ToLower(strings.TrimSpace(req.Email)),
		Role:               role,
		VerificationStatus: models.VerificationStatusVerified,
	}
	if role.IsProfessional() {
		user.VerificationStatus = models.VerificationStatusPending
	}
	if pid := strings.TrimSpace(req.ProfessionalID); pid != "" {
		user.ProfessionalID = &pid
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	starter := s.cfg.Registry.StarterCredits
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Users().GetByEmail(ctx, user.Email); err == nil {
			return ErrDuplicateEmail
		} else if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to look up email: %w", err)
		}
		if user.ProfessionalID != nil {
			if _, err := tx.Users().GetByProfessionalID(ctx, *user.ProfessionalID); err == nil {
				return ErrDuplicateProfessionalID
			} else if !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("failed to look up professional id: %w", err)
			}
		}

		if err := tx.Users().Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		if role.IsProfessional() && starter > 0 {
			if err := s.ledger.CreditTx(ctx, tx, user.ID, starter, models.CreditKindPurchase, "Starter credits"); err != nil {
				return err
			}
			user.Credits = starter
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if role.IsProfessional() && starter > 0 {
		s.metrics.LedgerEntry(string(models.CreditKindPurchase))
	}
	logrus.WithFields(logrus.Fields{
		"user_id": user.ID,
		"role":    user.Role,
	}).Info("User registered")
	return s.issue(user)
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	var user *models.User
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidCredentials
			}
			return fmt.Errorf("database error: %w", err)
		}

		if err := user.CheckPassword(req.Password); err != nil {
			return ErrInvalidCredentials
		}

		now := s.now()
		user.LastLoginAt = &now
		return tx.Users().Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.GetUserByID(ctx, userID)
}

func (s *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user *models.User
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().GetByID(ctx, userID)
		if err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}
		return nil
	})
	return user, err
}

// SendEmailVerification issues a fresh verification token for userID. Only the
// token's hash is stored; a previous token stops working.
func (s *AuthService) SendEmailVerification(ctx context.Context, userID uuid.UUID) (*EmailVerificationResponse, error) {
	token, err := utils.GenerateRandomHex(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate email token: %w", err)
	}
	hash := utils.HashString(token)
	expires := s.now().Add(emailVerifyTTL)

	var email string
	err = s.store.RunInTx(ctx, func(tx repository.Tx) error {
		user, err := tx.Users().GetByIDForUpdate(ctx, userID)
		if err != nil {
			return mapNotFound(err, ErrUserNotFound)
		}
		if user.EmailVerified {
			return ErrEmailAlreadyVerified
		}
		user.EmailVerifyToken = &hash
		user.EmailVerifyExpires = &expires
		email = user.Email
		return tx.Users().Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"email":   email,
	}).Info("Email verification token issued")

	resp := &EmailVerificationResponse{ExpiresAt: expires}
	if !s.cfg.IsProduction() {
		resp.DevToken = token
	}
	return resp, nil
}

// VerifyEmail consumes a token issued by SendEmailVerification.
func (s *AuthService) VerifyEmail(ctx context.Context, req *VerifyEmailRequest) (*models.User, error) {
	hash := utils.HashString(strings.TrimSpace(req.Token))

	var user *models.User
	err := s.store.RunInTx(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().GetByEmailVerifyToken(ctx, hash)
		if err != nil {
			return mapNotFound(err, ErrInvalidEmailToken)
		}
		if user.EmailVerifyExpires == nil || !s.now().Before(*user.EmailVerifyExpires) {
			return ErrInvalidEmailToken
		}
		user.EmailVerified = true
		user.EmailVerifyToken = nil
		user.EmailVerifyExpires = nil
		return tx.Users().Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithField("user_id", user.ID).Info("Email verified")
	return user, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResponse, error) {
	accessToken, err := utils.GenerateJWT(user.ID, user.Email, string(user.Role), s.cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return &AuthResponse{
		User:        user,
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   s.cfg.JWT.AccessTokenTTL * 3600,
	}, nil
}
