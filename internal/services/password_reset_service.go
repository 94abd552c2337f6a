package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"useraccounts/internal/logger"
	"useraccounts/internal/metrics"
	"useraccounts/internal/models"
	"useraccounts/internal/repositories"
)

type PasswordResetService interface {
	// RequestReset returns the reset link it queued for delivery.
	RequestReset(ctx context.Context, req models.PasswordResetRequest) (string, error)
	ResetPassword(ctx context.Context, req models.NewPasswordRequest) error
	ChangePassword(ctx context.Context, userID uuid.UUID, req models.ChangePasswordRequest) error
}

type passwordResetService struct {
	store    repositories.Store
	hasher   PasswordHasher
	policy   PasswordPolicy
	links    *LinkSigner
	notifier *Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewPasswordResetService(
	store repositories.Store,
	hasher PasswordHasher,
	policy PasswordPolicy,
	links *LinkSigner,
	notifier *Notifier,
	m *metrics.Metrics,
	l *zap.Logger,
) PasswordResetService {
	return &passwordResetService{
		store:    store,
		hasher:   hasher,
		policy:   policy,
		links:    links,
		notifier: notifier,
		metrics:  m,
		logger:   l,
		tracer:   otel.Tracer("services/password_reset"),
	}
}

func (s *passwordResetService) RequestReset(ctx context.Context, req models.PasswordResetRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "PasswordResetService.RequestReset")
	defer span.End()

	req.Email = models.NormalizeEmail(req.Email)
	if err := req.Validate(); err != nil {
		return "", fromValidation(err)
	}

	var link string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		user, err := tx.Users().GetByEmail(ctx, req.Email)
		if err != nil {
			return fromStore(err)
		}
		token, err := s.links.Sign(PurposePasswordReset, user)
		if err != nil {
			return err
		}
		link = s.links.URL(PurposePasswordReset, token)
		return s.notifier.Enqueue(ctx, tx, models.EventPasswordResetRequested, user, link)
	})
	if err != nil {
		recordFailure(ctx, s.logger, span, "password reset request failed", err)
		return "", err
	}

	s.metrics.AccountEvent("password_reset_requested")
	return link, nil
}

func (s *passwordResetService) ResetPassword(ctx context.Context, req models.NewPasswordRequest) error {
	ctx, span := s.tracer.Start(ctx, "PasswordResetService.ResetPassword")
	defer span.End()

	if err := req.Validate(); err != nil {
		return fromValidation(err)
	}
	claims, userID, err := s.links.Parse(req.Token, PurposePasswordReset)
	if err != nil {
		return err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return fromStore(err)
		}
		// пароль уже сменили по этой же ссылке или иным путём
		if claims.Fingerprint != PasswordFingerprint(user.PasswordHash) {
			return ErrLinkUsed
		}
		return s.storePassword(ctx, tx, user, req.NewPassword)
	})
	if err != nil {
		recordFailure(ctx, s.logger, span, "password reset failed", err)
		return err
	}

	s.metrics.AccountEvent("password_reset")
	logger.Info(ctx, s.logger, "password reset", zap.String("user_id", userID.String()))
	return nil
}

func (s *passwordResetService) ChangePassword(ctx context.Context, userID uuid.UUID, req models.ChangePasswordRequest) error {
	ctx, span := s.tracer.Start(ctx, "PasswordResetService.ChangePassword")
	defer span.End()

	if err := req.Validate(); err != nil {
		return fromValidation(err)
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return fromStore(err)
		}
		if err := s.hasher.CheckPassword(user.PasswordHash, req.OldPassword); err != nil {
			if errors.Is(err, ErrPasswordMismatch) {
				return ErrWrongOldPassword
			}
			return err
		}
		if req.NewPassword == req.OldPassword {
			return ErrSamePassword
		}
		return s.storePassword(ctx, tx, user, req.NewPassword)
	})
	if err != nil {
		recordFailure(ctx, s.logger, span, "password change failed", err)
		return err
	}

	s.metrics.AccountEvent("password_changed")
	logger.Info(ctx, s.logger, "password changed", zap.String("user_id", userID.String()))
	return nil
}

func (s *passwordResetService) storePassword(ctx context.Context, tx repositories.Store, user *models.User, password string) error {
	if err := s.policy.Validate(password, user.Email); err != nil {
		return err
	}
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := tx.Users().Update(ctx, user); err != nil {
		return fromStore(err)
	}
	return s.notifier.Enqueue(ctx, tx, models.EventPasswordChanged, user, "")
}
