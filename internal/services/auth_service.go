package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"useraccounts/internal/logger"
	"useraccounts/internal/metrics"
	"useraccounts/internal/models"
	"useraccounts/internal/repositories"
)

type PasswordHasher interface {
	HashPassword(password string) (string, error)
	// CheckPassword returns nil on match and ErrPasswordMismatch otherwise.
	CheckPassword(hash, password string) error
}

var ErrPasswordMismatch = errors.New("password mismatch")

type bcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", newValidationError("password is too long",
			map[string]string{"password": fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes)})
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func (h *bcryptHasher) CheckPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

type TokenResult struct {
	Token  string    `json:"token"`
	UserID uuid.UUID `json:"user_uuid"`
	Email  string    `json:"email"`
}

type AuthService interface {
	ObtainToken(ctx context.Context, req models.LoginRequest) (*TokenResult, error)
	// Authenticate resolves a bearer key into an active account.
	Authenticate(ctx context.Context, key string) (*models.User, error)
}

type authService struct {
	store   repositories.Store
	hasher  PasswordHasher
	metrics *metrics.Metrics
	logger  *zap.Logger
	tracer  trace.Tracer

	// хэш для сравнения, когда email не найден: ответ занимает столько же времени
	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(store repositories.Store, hasher PasswordHasher, m *metrics.Metrics, l *zap.Logger) AuthService {
	return &authService{
		store:   store,
		hasher:  hasher,
		metrics: m,
		logger:  l,
		tracer:  otel.Tracer("services/auth"),
	}
}

func (s *authService) ObtainToken(ctx context.Context, req models.LoginRequest) (*TokenResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.ObtainToken")
	defer span.End()

	req.Email = models.NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, fromValidation(err)
	}

	user, err := s.store.Users().GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			_ = s.hasher.CheckPassword(s.unknownUserHash(ctx), req.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := s.hasher.CheckPassword(user.PasswordHash, req.Password); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	// неактивный аккаунт получает тот же ответ, что и неверный пароль
	if !user.IsActive {
		logger.Info(ctx, s.logger, "login rejected: account inactive", zap.String("user_id", user.ID.String()))
		return nil, ErrInvalidCredentials
	}

	tok, err := s.store.AuthTokens().GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.metrics.AccountEvent("token_obtained")
	return &TokenResult{Token: tok.Key, UserID: user.ID, Email: user.Email}, nil
}

func (s *authService) unknownUserHash(ctx context.Context) string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.HashPassword(uuid.NewString())
		if err != nil {
			logger.Warn(ctx, s.logger, "dummy password hash failed", zap.Error(err))
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

func (s *authService) Authenticate(ctx context.Context, key string) (*models.User, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrUnauthenticated
	}

	userID, err := s.store.AuthTokens().Resolve(ctx, key)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}

	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInactive
	}
	return user, nil
}
