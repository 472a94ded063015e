package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	logctx "credential-service/internal/pkg/log"
	"credential-service/internal/pkg/redact"

	"github.com/google/uuid"
)

// ChangePassword меняет пароль аутентифицированного пользователя.
//
// Старый пароль перепроверяется через справочник; несовпадение и
// исчезнувший пользователь дают одинаковый ErrInvalidCredentials.
// Действующие refresh-семьи НЕ отзываются — сессии, установленные
// до смены пароля, переживают её (поведение исходной системы).
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	const op = "service.password.ChangePassword"

	if err := s.validatePassword(newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.directory.UserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	verified, err := s.directory.VerifyCredentials(ctx, user.Email, oldPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if verified == nil {
		logctx.From(ctx).Warn("change_password_rejected",
			slog.String("op", op),
			slog.String("user_id", userID.String()),
		)
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if err := s.directory.UpdatePassword(ctx, userID, newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logctx.From(ctx).Info("password_changed",
		slog.String("op", op),
		slog.String("user_id", userID.String()),
	)

	return nil
}

// ForgotPassword запускает сценарий сброса пароля.
//
// Анти-перечисление: для несуществующего email возвращается тот же успех,
// что и для существующего, письмо при этом не отправляется. Новый челлендж
// вытесняет предыдущий — действует только последняя ссылка.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	const op = "service.password.ForgotPassword"

	lg := logctx.From(ctx)

	normEmail, err := validateEmail(email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	user, err := s.directory.UserByEmail(ctx, normEmail)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		lg.Info("forgot_password_unknown_email",
			slog.String("op", op),
			slog.String("email", redact.Email(normEmail)),
		)
		return nil
	}

	now := time.Now().UTC()
	rawToken, err := s.signer.IssueReset(user, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.resets.SaveChallenge(ctx, user.ID, rawToken, now.Add(s.cfg.ResetTokenTTL)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// Fire-and-forget: отказ SMTP не делает сценарий ошибкой — иначе
	// разница в ответах выдала бы существование адреса.
	if err := s.mail.SendPasswordReset(ctx, user.Email, rawToken); err != nil {
		lg.Error("password_reset_email_failed",
			slog.String("op", op),
			slog.String("email", redact.Email(user.Email)),
			slog.String("err", err.Error()),
		)
	}

	return nil
}

// ResetPassword завершает сценарий сброса: проверяет одноразовый токен,
// гасит челлендж и сохраняет новый пароль.
//
// Любой дефект токена (подпись, срок, тип, несовпадение с хранимым
// челленджем) — ErrInvalidResetToken: формулировка «invalid or expired»
// не уточняет, что именно не так.
func (s *Service) ResetPassword(ctx context.Context, rawResetToken, newPassword string) error {
	const op = "service.password.ResetPassword"

	if err := s.validatePassword(newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	claims, err := s.signer.VerifyReset(rawResetToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidResetToken)
	}

	userID, err := claims.SubjectID()
	if err != nil {
		return fmt.Errorf("%s: %w", op, ErrInvalidResetToken)
	}

	ok, err := s.resets.ConsumeChallenge(ctx, userID, rawResetToken)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		logctx.From(ctx).Warn("reset_challenge_rejected",
			slog.String("op", op),
			slog.String("user_id", userID.String()),
		)
		return fmt.Errorf("%s: %w", op, ErrInvalidResetToken)
	}

	user, err := s.directory.UserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	if err := s.directory.UpdatePassword(ctx, userID, newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// Одноразовость: удаляем челлендж только после успешной смены пароля,
	// чтобы сбой записи не сжигал действующую ссылку.
	if err := s.resets.DeleteChallenge(ctx, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	logctx.From(ctx).Info("password_reset_completed",
		slog.String("op", op),
		slog.String("user_id", userID.String()),
	)

	return nil
}
