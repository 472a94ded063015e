// token реализует выпуск и проверку подписанных токенов (JWT, HS256).
//
// Пакет не имеет состояния и не обращается к хранилищу: подпись и срок
// действия зашиты в сам токен, поэтому дешёвая проверка access-токена
// не требует похода в БД. Полезная нагрузка — не один «резиновый» тип
// с опциональными полями, а три варианта клеймов с дискриминантом typ:
// AccessClaims, RefreshClaims, ResetClaims.
package token

import (
	"errors"
	"fmt"
	"time"

	"credential-service/internal/config"
	"credential-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalid — токен некорректен: подпись, формат, issuer/audience
	// или дискриминант typ не совпали.
	ErrInvalid = errors.New("invalid token")

	// ErrExpired — срок действия токена истёк.
	ErrExpired = errors.New("token expired")
)

// Значения дискриминанта typ.
const (
	typeAccess  = "access"
	typeRefresh = "refresh"
	typeReset   = "password-reset"
)

// baseClaims — общая часть полезной нагрузки всех токенов.
type baseClaims struct {
	Email     string   `json:"email"`
	Username  string   `json:"username,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"typ"`
	jwt.RegisteredClaims
}

// AccessClaims — полезная нагрузка access-токена.
// Уникальный идентификатор токена (jti) лежит в RegisteredClaims.ID
// и позволяет отозвать конкретный токен через денилист.
type AccessClaims struct {
	baseClaims
}

// RefreshClaims — полезная нагрузка refresh-токена; дополнительно несёт
// идентификатор rotation family.
type RefreshClaims struct {
	FamilyID string `json:"familyId"`
	baseClaims
}

// ResetClaims — полезная нагрузка одноразового токена сброса пароля.
type ResetClaims struct {
	baseClaims
}

// TokenID возвращает jti access-токена.
func (c *AccessClaims) TokenID() string { return c.ID }

// SubjectID разбирает subject как UUID пользователя.
func (c *baseClaims) SubjectID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalid
	}

	return id, nil
}

// Signer выпускает и проверяет подписанные токены.
// Экземпляр безопасен для конкурентного использования.
type Signer struct {
	cfg config.AuthConfig
}

// NewSigner создаёт Signer с заданной конфигурацией.
func NewSigner(cfg config.AuthConfig) *Signer {
	return &Signer{cfg: cfg}
}

// IssueAccess выпускает access-токен для пользователя.
// Возвращает подписанный токен и его jti.
func (s *Signer) IssueAccess(user *models.User, now time.Time) (string, string, error) {
	const op = "token.signer.IssueAccess"

	jti := uuid.NewString()
	claims := AccessClaims{
		baseClaims: s.base(user, typeAccess, now, s.cfg.AccessTokenTTL),
	}
	claims.ID = jti

	signed, err := s.sign(claims)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, jti, nil
}

// IssueRefresh выпускает refresh-токен, привязанный к rotation family.
func (s *Signer) IssueRefresh(user *models.User, familyID uuid.UUID, now time.Time) (string, error) {
	const op = "token.signer.IssueRefresh"

	claims := RefreshClaims{
		FamilyID:   familyID.String(),
		baseClaims: s.base(user, typeRefresh, now, s.cfg.RefreshTokenTTL),
	}

	signed, err := s.sign(claims)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// IssueReset выпускает одноразовый токен сброса пароля.
func (s *Signer) IssueReset(user *models.User, now time.Time) (string, error) {
	const op = "token.signer.IssueReset"

	claims := ResetClaims{
		baseClaims: s.base(user, typeReset, now, s.cfg.ResetTokenTTL),
	}
	// В токене сброса нет ролей/username: письмо живёт час,
	// а лишние данные в ссылке ни к чему.
	claims.Username = ""
	claims.Roles = nil

	signed, err := s.sign(claims)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// VerifyAccess проверяет access-токен: подпись, срок, issuer/audience и typ.
func (s *Signer) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	const op = "token.signer.VerifyAccess"

	var claims AccessClaims
	if err := s.parse(tokenStr, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.TokenType != typeAccess {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	return &claims, nil
}

// VerifyRefresh проверяет refresh-токен и его принадлежность к типу refresh.
func (s *Signer) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	const op = "token.signer.VerifyRefresh"

	var claims RefreshClaims
	if err := s.parse(tokenStr, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.TokenType != typeRefresh {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	return &claims, nil
}

// VerifyReset проверяет токен сброса пароля; любой не-reset токен отклоняется.
func (s *Signer) VerifyReset(tokenStr string) (*ResetClaims, error) {
	const op = "token.signer.VerifyReset"

	var claims ResetClaims
	if err := s.parse(tokenStr, &claims); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if claims.TokenType != typeReset {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	return &claims, nil
}

// base собирает общую часть клеймов.
func (s *Signer) base(user *models.User, typ string, now time.Time, ttl time.Duration) baseClaims {
	return baseClaims{
		Email:     user.Email,
		Username:  user.Username,
		Roles:     user.Roles,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.cfg.Issuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings(s.cfg.Audience),
		},
	}
}

// sign подписывает клеймы секретом сервиса (HS256).
func (s *Signer) sign(claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := tok.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", err
	}

	return signed, nil
}

// parse разбирает и валидирует токен; ошибки нормализуются
// до ErrExpired/ErrInvalid, чтобы вызывающий слой не зависел от деталей jwt.
func (s *Signer) parse(tokenStr string, claims jwt.Claims) error {
	tok, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalid
			}

			return []byte(s.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience...),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}

		return ErrInvalid
	}

	if !tok.Valid {
		return ErrInvalid
	}

	return nil
}
