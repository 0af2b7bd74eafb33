package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"clinic/internal/domain"
	"clinic/internal/events"
	"clinic/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type AuthService struct {
	users      domain.UserRepository
	tokens     domain.TokenRepository
	eventBus   domain.EventPublisher
	tokenTTL   time.Duration
	bcryptCost int
	now        func() time.Time
	logger     *zerolog.Logger
}

func NewAuthService(users domain.UserRepository, tokens domain.TokenRepository, eventBus domain.EventPublisher,
	tokenTTL time.Duration, bcryptCost int, logger *zerolog.Logger,
) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = models.DefaultTokenTTL
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:      users,
		tokens:     tokens,
		eventBus:   eventBus,
		tokenTTL:   tokenTTL,
		bcryptCost: bcryptCost,
		now:        time.Now,
		logger:     logger,
	}
}

// Register creates a customer account. Other roles are granted by CreateUser.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	return s.CreateUser(ctx, name, email, password, models.RoleCustomer)
}

func (s *AuthService) CreateUser(ctx context.Context, name, email, password, role string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, fmt.Errorf("%w: invalid email", domain.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{Name: name, Email: email, PasswordHash: string(hash), Role: role}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("role", user.Role).Msg("user registered")
	if s.eventBus != nil {
		payload := events.UserEventPayload{UserID: user.ID, Email: user.Email, Role: user.Role}
		if err := s.eventBus.PublishJSON(events.EventUserRegistered, payload); err != nil {
			s.logger.Error().Err(err).Msg("Failed to publish event")
		}
	}
	return user, nil
}

// Login проверяет пароль, отзывает прежние токены пользователя и выдаёт новый.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	if err := s.tokens.DeleteUserTokens(ctx, user.ID); err != nil {
		return nil, err
	}

	plain, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	ability := models.AbilityCustomer
	if user.IsAdmin() {
		ability = models.AbilityAdmin
	}
	token := &models.AccessToken{
		UserID:    user.ID,
		TokenHash: hashToken(plain),
		Abilities: []string{ability},
		ExpiresAt: s.now().Add(s.tokenTTL).UTC(),
	}
	if err := s.tokens.CreateToken(ctx, token); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Msg("user logged in")
	return &models.Session{User: user, Token: plain, ExpiresAt: token.ExpiresAt}, nil
}

func (s *AuthService) Logout(ctx context.Context, token *models.AccessToken) error {
	if token == nil {
		return domain.ErrUnauthorized
	}
	return s.tokens.DeleteToken(ctx, token.ID)
}

// Authenticate resolves a plain bearer token to its user. Expired tokens are
// deleted on sight.
func (s *AuthService) Authenticate(ctx context.Context, plainToken string) (*models.User, *models.AccessToken, error) {
	if plainToken == "" {
		return nil, nil, domain.ErrUnauthorized
	}

	token, err := s.tokens.GetTokenByHash(ctx, hashToken(plainToken))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrUnauthorized
		}
		return nil, nil, err
	}
	if token.Expired(s.now()) {
		if err := s.tokens.DeleteToken(ctx, token.ID); err != nil {
			s.logger.Warn().Err(err).Int64("token_id", token.ID).Msg("failed to delete expired token")
		}
		return nil, nil, domain.ErrUnauthorized
	}

	user, err := s.users.GetUserByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrUnauthorized
		}
		return nil, nil, err
	}
	return user, token, nil
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
