package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"useraccounts/internal/logger"
	"useraccounts/internal/metrics"
	"useraccounts/internal/models"
	"useraccounts/internal/repositories"
)

type RegistrationResult struct {
	User           *models.User
	ActivationLink string
}

type EmailChangeResult struct {
	User             *models.User
	VerificationLink string
}

type UserService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*RegistrationResult, error)
	// Activate reports alreadyActive=true when the account was active before.
	Activate(ctx context.Context, token string) (alreadyActive bool, err error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListUsers(ctx context.Context, filter models.UserFilter) ([]*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, req models.UpdateProfileRequest) (*models.User, error)
	RequestEmailChange(ctx context.Context, userID uuid.UUID, req models.ChangeEmailRequest) (*EmailChangeResult, error)
	ConfirmEmail(ctx context.Context, req models.VerifyEmailRequest) error
	CreateSuperuser(ctx context.Context, req models.RegisterRequest) (*models.User, error)
}

type userService struct {
	store    repositories.Store
	hasher   PasswordHasher
	policy   PasswordPolicy
	links    *LinkSigner
	notifier *Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewUserService(
	store repositories.Store,
	hasher PasswordHasher,
	policy PasswordPolicy,
	links *LinkSigner,
	notifier *Notifier,
	m *metrics.Metrics,
	l *zap.Logger,
) UserService {
	return &userService{
		store:    store,
		hasher:   hasher,
		policy:   policy,
		links:    links,
		notifier: notifier,
		metrics:  m,
		logger:   l,
		tracer:   otel.Tracer("services/user"),
	}
}

func (s *userService) Register(ctx context.Context, req models.RegisterRequest) (*RegistrationResult, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Register")
	defer span.End()

	req.Email = models.NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, fromValidation(err)
	}
	if err := s.policy.Validate(req.Password, req.Email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
	}

	var link string
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		taken, err := tx.Users().ExistsByEmail(ctx, user.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return fromStore(err)
		}

		token, err := s.links.Sign(PurposeActivation, user)
		if err != nil {
			return err
		}
		link = s.links.URL(PurposeActivation, token)
		return s.notifier.Enqueue(ctx, tx, models.EventAccountRegistered, user, link)
	})
	if err != nil {
		recordFailure(ctx, s.logger, span, "register failed", err)
		return nil, err
	}

	s.metrics.AccountEvent("registered")
	logger.Info(ctx, s.logger, "user registered", zap.String("user_id", user.ID.String()))
	return &RegistrationResult{User: user, ActivationLink: link}, nil
}

func (s *userService) Activate(ctx context.Context, token string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Activate")
	defer span.End()

	if strings.TrimSpace(token) == "" {
		return false, ErrTokenRequired
	}
	_, userID, err := s.links.Parse(token, PurposeActivation)
	if err != nil {
		return false, err
	}

	alreadyActive := false
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return fromStore(err)
		}
		if user.IsActive {
			alreadyActive = true
			return nil
		}
		user.IsActive = true
		user.IsEmailVerified = true
		return fromStore(tx.Users().Update(ctx, user))
	})
	if err != nil {
		recordFailure(ctx, s.logger, span, "activation failed", err)
		return false, err
	}

	if !alreadyActive {
		s.metrics.AccountEvent("activated")
		logger.Info(ctx, s.logger, "user activated", zap.String("user_id", userID.String()))
	}
	return alreadyActive, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context, filter models.UserFilter) ([]*models.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.ListUsers")
	defer span.End()

	filter.Email = models.NormalizeEmail(filter.Email)
	if err := filter.Validate(); err != nil {
		return nil, fromValidation(err)
	}

	users, err := s.store.Users().List(ctx, filter)
	if err != nil {
		recordFailure(ctx, s.logger, span, "list users failed", err)
		return nil, err
	}
	return users, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID uuid.UUID, req models.UpdateProfileRequest) (*models.User, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.UpdateProfile")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, fromValidation(err)
	}

	var updated *models.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return fromStore(err)
		}

		changed := false
		if req.FirstName != nil {
			if v := strings.TrimSpace(*req.FirstName); v != user.FirstName {
				user.FirstName = v
				changed = true
			}
		}
		if req.LastName != nil {
			if v := strings.TrimSpace(*req.LastName); v != user.LastName {
				user.LastName = v
				changed = true
			}
		}
		if !changed {
			return ErrProfileUnchanged
		}

		if err := tx.Users().Update(ctx, user); err != nil {
			return fromStore(err)
		}
		updated = user
		return nil
	})
	if err != nil {
		recordFailure(ctx, s.logger, span, "update profile failed", err)
		return nil, err
	}

	s.metrics.AccountEvent("profile_updated")
	return updated, nil
}

func (s *userService) RequestEmailChange(ctx context.Context, userID uuid.UUID, req models.ChangeEmailRequest) (*EmailChangeResult, error) {
	ctx, span := s.tracer.Start(ctx, "UserService.RequestEmailChange")
	defer span.End()

	req.NewEmail = models.NormalizeEmail(req.NewEmail)
	if err := req.Validate(); err != nil {
		return nil, fromValidation(err)
	}

	var (
		updated *models.User
		link    string
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return fromStore(err)
		}
		if user.Email == req.NewEmail {
			return ErrSameEmail
		}
		taken, err := tx.Users().ExistsByEmail(ctx, req.NewEmail)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}

		user.Email = req.NewEmail
		user.IsEmailVerified = false
		if err := tx.Users().Update(ctx, user); err != nil {
			return fromStore(err)
		}

		token, err := s.links.Sign(PurposeEmailVerification, user)
		if err != nil {
			return err
		}
		link = s.links.URL(PurposeEmailVerification, token)
		updated = user
		return s.notifier.Enqueue(ctx, tx, models.EventEmailChangeRequested, user, link)
	})
	if err != nil {
		recordFailure(ctx, s.logger, span, "email change failed", err)
		return nil, err
	}

	s.metrics.AccountEvent("email_change_requested")
	logger.Info(ctx, s.logger, "email change requested", zap.String("user_id", userID.String()))
	return &EmailChangeResult{User: updated, VerificationLink: link}, nil
}

func (s *userService) ConfirmEmail(ctx context.Context, req models.VerifyEmailRequest) error {
	ctx, span := s.tracer.Start(ctx, "UserService.ConfirmEmail")
	defer span.End()

	req.Email = models.NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return fromValidation(err)
	}

	claims, userID, err := s.links.Parse(req.Token, PurposeEmailVerification)
	if err != nil {
		return err
	}
	// ссылка выписана на конкретный адрес
	if claims.Email != req.Email {
		return ErrUserNotFound
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return fromStore(err)
		}
		if user.Email != req.Email {
			return ErrUserNotFound
		}
		if user.IsEmailVerified {
			return nil
		}
		user.IsEmailVerified = true
		return fromStore(tx.Users().Update(ctx, user))
	})
	if err != nil {
		recordFailure(ctx, s.logger, span, "email confirmation failed", err)
		return err
	}

	s.metrics.AccountEvent("email_verified")
	return nil
}

// CreateSuperuser creates an active, verified staff+superuser account.
func (s *userService) CreateSuperuser(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	req.Email = models.NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return nil, fromValidation(err)
	}
	if err := s.policy.Validate(req.Password, req.Email); err != nil {
		return nil, err
	}
	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:              uuid.New(),
		Email:           req.Email,
		PasswordHash:    hash,
		FirstName:       strings.TrimSpace(req.FirstName),
		LastName:        strings.TrimSpace(req.LastName),
		IsActive:        true,
		IsEmailVerified: true,
		IsStaff:         true,
		IsSuperuser:     true,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return nil, fromStore(err)
	}

	logger.Info(ctx, s.logger, "superuser created", zap.String("user_id", user.ID.String()))
	return user, nil
}

// recordFailure logs internal errors; domain errors are expected outcomes.
func recordFailure(ctx context.Context, l *zap.Logger, span trace.Span, msg string, err error) {
	if KindOf(err) != KindInternal {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	logger.Error(ctx, l, msg, zap.Error(err))
}
