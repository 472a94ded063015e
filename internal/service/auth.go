package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"credential-service/internal/directory"
	"credential-service/internal/models"
	logctx "credential-service/internal/pkg/log"
	"credential-service/internal/pkg/redact"

	"github.com/google/uuid"
)

// RegisterInput — данные регистрации нового пользователя.
type RegisterInput struct {
	Email     string
	Password  string
	Username  string
	FirstName string
	LastName  string
}

// Register регистрирует нового пользователя и сразу выпускает пару токенов
// под новой rotation family (поведение идентично успешному Login).
//
// Создание пользователя и выпуск токенов последовательны: если выпуск
// упал после создания, пользователь существует без сессии — это допустимо,
// он просто залогинится.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.AuthResult, error) {
	const op = "service.auth.Register"

	normEmail, err := validateEmail(in.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := s.validatePassword(in.Password); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyUsername)
	}

	existing, err := s.directory.UserByEmail(ctx, normEmail)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}

	existing, err = s.directory.UserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrUsernameTaken)
	}

	user, err := s.directory.Create(ctx, directory.NewUser{
		Email:     normEmail,
		Username:  username,
		Password:  in.Password,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
	})
	if err != nil {
		// Гонка двух регистраций: уникальность добита констрейнтом БД.
		if isAlreadyExists(err) {
			return nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logctx.From(ctx).Info("user_registered",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	return s.issueAuthResult(ctx, user)
}

// Login выполняет вход по email+пароль.
//
// Проверка учётных данных целиком делегирована справочнику пользователей;
// «неизвестный email», «неверный пароль» и «неактивный аккаунт» дают
// одинаковый ErrInvalidCredentials — ответ не раскрывает причину.
func (s *Service) Login(ctx context.Context, email, password string) (*models.AuthResult, error) {
	const op = "service.auth.Login"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if len(password) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.directory.VerifyCredentials(ctx, normEmail, password)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		logctx.From(ctx).Warn("login_rejected",
			slog.String("op", op),
			slog.String("email", redact.Email(normEmail)),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	return s.issueAuthResult(ctx, user)
}

// Refresh обновляет пару токенов по refresh-токену с ротацией семьи.
//
// Порядок шагов фиксирован: подпись -> денилист -> сверка с хранилищем ->
// перечитывание пользователя -> отзыв старой семьи -> выпуск новой.
// Токен, который корректно разобрался, но не нашёлся среди сохранённых
// (например, уже ротирован), безусловно отклоняется — это путь обнаружения
// replay. Из двух конкурентных refresh по одному токену выигрывает максимум
// один: второй не пройдёт сверку, потому что строки семьи уже удалены.
func (s *Service) Refresh(ctx context.Context, rawRefreshToken string) (*models.AuthResult, error) {
	const op = "service.auth.Refresh"

	lg := logctx.From(ctx)

	claims, err := s.signer.VerifyRefresh(rawRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.tokenErr(err))
	}

	blacklisted, err := s.tokens.IsBlacklisted(ctx, rawRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if blacklisted {
		lg.Warn("refresh_blacklisted", slog.String("op", op))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	userID, err := claims.SubjectID()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	familyID, matched, err := s.tokens.MatchRefreshToken(ctx, userID, rawRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !matched {
		// Валиден по подписи, но не хранится: токен уже ротирован либо
		// семья отозвана. Отклоняем без отзыва заявленной семьи.
		lg.Warn("refresh_replay_detected",
			slog.String("op", op),
			slog.String("user_id", userID.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := s.directory.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user == nil || !user.IsActive {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	// Отзыв всей линии до выпуска новой: даже при падении между шагами
	// пользователь окажется разлогинен, но не в неконсистентном состоянии.
	if err := s.tokens.RevokeFamily(ctx, familyID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.issueAuthResult(ctx, user)
}

// Logout отзывает сессию: семья предъявленного refresh-токена уничтожается,
// сам токен попадает в денилист до естественного истечения, access-токен
// (если передан) блокируется по jti.
//
// Best-effort по построению: невалидный или уже отозванный токен не делает
// logout ошибкой — не выйти из системы хуже, чем получить невнятный отказ.
func (s *Service) Logout(ctx context.Context, userID uuid.UUID, rawAccessToken, rawRefreshToken string) {
	const op = "service.auth.Logout"

	lg := logctx.From(ctx)

	if rawRefreshToken != "" {
		claims, err := s.signer.VerifyRefresh(rawRefreshToken)
		if err == nil {
			if familyID, perr := uuid.Parse(claims.FamilyID); perr == nil {
				if err := s.tokens.RevokeFamily(ctx, familyID); err != nil {
					lg.Error("logout_revoke_family_failed",
						slog.String("op", op),
						slog.String("err", err.Error()),
					)
				}
			}

			expiresAt := time.Now().UTC().Add(s.cfg.RefreshTokenTTL)
			if claims.ExpiresAt != nil {
				expiresAt = claims.ExpiresAt.Time
			}
			if err := s.tokens.Blacklist(ctx, rawRefreshToken, "", expiresAt); err != nil {
				lg.Error("logout_blacklist_failed",
					slog.String("op", op),
					slog.String("err", err.Error()),
				)
			}
		}
	}

	if rawAccessToken != "" {
		s.blacklistAccessToken(ctx, rawAccessToken)
	}

	lg.Info("user_logged_out",
		slog.String("op", op),
		slog.String("user_id", userID.String()),
	)
}

// blacklistAccessToken заносит access-токен в денилист по jti на остаток
// его жизни. Ошибки глотаются: это best-effort часть logout.
func (s *Service) blacklistAccessToken(ctx context.Context, rawAccessToken string) {
	const op = "service.auth.blacklistAccessToken"

	lg := logctx.From(ctx)

	claims, err := s.signer.VerifyAccess(rawAccessToken)
	if err != nil {
		return
	}

	expiresAt := time.Now().UTC().Add(s.cfg.AccessTokenTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	if err := s.tokens.Blacklist(ctx, rawAccessToken, claims.TokenID(), expiresAt); err != nil {
		lg.Error("logout_access_blacklist_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return
	}

	if s.blcache != nil {
		ttl := time.Until(expiresAt)
		if err := s.blcache.MarkTokenID(ctx, claims.TokenID(), ttl); err != nil {
			lg.Warn("blacklist_cache_mark_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		}
	}
}

// ValidateAccess проверяет access-токен и возвращает его владельца.
//
// Дешёвый путь — подпись и срок внутри токена; денилист проверяется
// сначала по jti (кэш, затем индекс в БД), и только потом полным перебором
// хэшей. Пользователь перечитывается из справочника: деактивация аккаунта
// убивает и ещё не истёкшие access-токены.
func (s *Service) ValidateAccess(ctx context.Context, rawAccessToken string) (*models.User, error) {
	const op = "service.auth.ValidateAccess"

	lg := logctx.From(ctx)

	claims, err := s.signer.VerifyAccess(rawAccessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, s.tokenErr(err))
	}

	jti := claims.TokenID()
	if s.blcache != nil && jti != "" {
		hit, err := s.blcache.IsTokenIDBlacklisted(ctx, jti)
		if err != nil {
			// Кэш недоступен — идём в БД, это не повод отклонять запрос.
			lg.Warn("blacklist_cache_lookup_failed",
				slog.String("op", op),
				slog.String("err", err.Error()),
			)
		} else if hit {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}
	}

	blacklisted, err := s.tokens.IsTokenIDBlacklisted(ctx, jti)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !blacklisted {
		blacklisted, err = s.tokens.IsBlacklisted(ctx, rawAccessToken)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	if blacklisted {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	userID, err := claims.SubjectID()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := s.directory.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if user == nil || !user.IsActive {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return user, nil
}

// Profile возвращает безопасный профиль пользователя.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (models.Profile, error) {
	const op = "service.auth.Profile"

	user, err := s.directory.UserByID(ctx, userID)
	if err != nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, err)
	}
	if user == nil {
		return models.Profile{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	return user.Profile(), nil
}

// issueAuthResult выпускает пару access+refresh под новой rotation family
// и сохраняет хэш refresh-токена.
func (s *Service) issueAuthResult(ctx context.Context, user *models.User) (*models.AuthResult, error) {
	const op = "service.auth.issueAuthResult"

	now := time.Now().UTC()

	accessToken, _, err := s.signer.IssueAccess(user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	familyID := uuid.New()
	refreshToken, err := s.signer.IssueRefresh(user, familyID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	expiresAt := now.Add(s.cfg.RefreshTokenTTL)
	if err := s.tokens.SaveRefreshToken(ctx, user.ID, familyID, refreshToken, expiresAt); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.AuthResult{
		User: user.Profile(),
		Tokens: models.TokenPair{
			AccessToken:     accessToken,
			RefreshToken:    refreshToken,
			AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
		},
	}, nil
}

// tokenErr нормализует ошибку Signer до сервисного сентинела.
func (s *Service) tokenErr(err error) error {
	if isTokenExpired(err) {
		return ErrTokenExpired
	}

	return ErrInvalidToken
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" {
		return "", ErrInvalidEmail
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет длину пароля по настроенной политике.
func (s *Service) validatePassword(pw string) error {
	if len(pw) == 0 {
		return ErrEmptyPassword
	}

	if len([]rune(pw)) < s.cfg.PasswordMinLen {
		return ErrWeakPassword
	}

	if len([]rune(pw)) > s.cfg.PasswordMaxLen {
		return ErrPasswordTooLong
	}

	return nil
}
