package token

import (
	"testing"
	"time"

	"credential-service/internal/config"
	"credential-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-test-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		ResetTokenTTL:   time.Hour,
		Issuer:          "credential-service",
		Audience:        []string{"api-gateway"},
	}
}

func testUser() *models.User {
	return &models.User{
		ID:       uuid.New(),
		Email:    "user@example.com",
		Username: "user",
		Roles:    []string{"user"},
		IsActive: true,
	}
}

func TestIssueAccess_AndVerify_OK(t *testing.T) {
	s := NewSigner(testAuthCfg())
	user := testUser()
	now := time.Now().UTC()

	signed, jti, err := s.IssueAccess(user, now)
	require.NoError(t, err)
	require.NotEmpty(t, signed)
	require.NotEmpty(t, jti)

	claims, err := s.VerifyAccess(signed)
	require.NoError(t, err)
	require.Equal(t, jti, claims.TokenID())
	require.Equal(t, user.Email, claims.Email)
	require.Equal(t, user.Username, claims.Username)
	require.Equal(t, user.Roles, claims.Roles)

	uid, err := claims.SubjectID()
	require.NoError(t, err)
	require.Equal(t, user.ID, uid)
}

func TestIssueRefresh_AndVerify_CarriesFamily(t *testing.T) {
	s := NewSigner(testAuthCfg())
	user := testUser()
	familyID := uuid.New()

	signed, err := s.IssueRefresh(user, familyID, time.Now().UTC())
	require.NoError(t, err)

	claims, err := s.VerifyRefresh(signed)
	require.NoError(t, err)
	require.Equal(t, familyID.String(), claims.FamilyID)

	uid, err := claims.SubjectID()
	require.NoError(t, err)
	require.Equal(t, user.ID, uid)
}

func TestIssueReset_StripsUsernameAndRoles(t *testing.T) {
	s := NewSigner(testAuthCfg())
	user := testUser()

	signed, err := s.IssueReset(user, time.Now().UTC())
	require.NoError(t, err)

	claims, err := s.VerifyReset(signed)
	require.NoError(t, err)
	require.Equal(t, user.Email, claims.Email)
	require.Empty(t, claims.Username)
	require.Empty(t, claims.Roles)
}

// Каждый Verify-метод принимает только свой тип токена: access-токен
// не проходит как refresh, refresh — как reset и т.д.
func TestVerify_RejectsForeignTokenType(t *testing.T) {
	s := NewSigner(testAuthCfg())
	user := testUser()
	now := time.Now().UTC()

	access, _, err := s.IssueAccess(user, now)
	require.NoError(t, err)
	refresh, err := s.IssueRefresh(user, uuid.New(), now)
	require.NoError(t, err)
	reset, err := s.IssueReset(user, now)
	require.NoError(t, err)

	t.Run("access is not refresh", func(t *testing.T) {
		_, err := s.VerifyRefresh(access)
		require.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("refresh is not access", func(t *testing.T) {
		_, err := s.VerifyAccess(refresh)
		require.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("reset is not access", func(t *testing.T) {
		_, err := s.VerifyAccess(reset)
		require.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("access is not reset", func(t *testing.T) {
		_, err := s.VerifyReset(access)
		require.ErrorIs(t, err, ErrInvalid)
	})
}

func TestVerifyAccess_WrongAlg_WrongIssuer_WrongAudience_WrongSecret(t *testing.T) {
	s := NewSigner(testAuthCfg())
	uid := uuid.New()
	now := time.Now().UTC()

	mkClaims := func(iss string, aud []string) jwt.MapClaims {
		return jwt.MapClaims{
			"email": "a@b.c",
			"typ":   "access",
			"iss":   iss,
			"sub":   uid.String(),
			"aud":   aud,
			"exp":   now.Add(15 * time.Minute).Unix(),
			"iat":   now.Unix(),
			"jti":   uuid.NewString(),
		}
	}

	t.Run("wrong alg", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS512, mkClaims("credential-service", []string{"api-gateway"}))
		signed, err := tok.SignedString([]byte(testAuthCfg().JWTSecret))
		require.NoError(t, err)

		_, err = s.VerifyAccess(signed)
		require.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, mkClaims("another-issuer", []string{"api-gateway"}))
		signed, err := tok.SignedString([]byte(testAuthCfg().JWTSecret))
		require.NoError(t, err)

		_, err = s.VerifyAccess(signed)
		require.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("wrong audience", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, mkClaims("credential-service", []string{"unexpected-aud"}))
		signed, err := tok.SignedString([]byte(testAuthCfg().JWTSecret))
		require.NoError(t, err)

		_, err = s.VerifyAccess(signed)
		require.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, mkClaims("credential-service", []string{"api-gateway"}))
		signed, err := tok.SignedString([]byte("another-secret"))
		require.NoError(t, err)

		_, err = s.VerifyAccess(signed)
		require.ErrorIs(t, err, ErrInvalid)
	})
}

func TestVerifyAccess_Expired(t *testing.T) {
	cfg := testAuthCfg()
	cfg.AccessTokenTTL = -10 * time.Minute
	s := NewSigner(cfg)

	signed, _, err := s.IssueAccess(testUser(), time.Now().UTC())
	require.NoError(t, err)

	_, err = s.VerifyAccess(signed)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyAccess_Garbage(t *testing.T) {
	s := NewSigner(testAuthCfg())

	_, err := s.VerifyAccess("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalid)

	_, err = s.VerifyAccess("")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestSubjectID_InvalidSubject(t *testing.T) {
	c := &baseClaims{}
	c.Subject = "not-a-uuid"

	_, err := c.SubjectID()
	require.ErrorIs(t, err, ErrInvalid)
}
