package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"credential-service/internal/config"
	"credential-service/internal/models"
	"credential-service/internal/storage"
	"credential-service/internal/token"
	"credential-service/mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func testCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		ResetTokenTTL:   time.Hour,
		Issuer:          "credential-service",
		Audience:        []string{"api-gateway"},
		PasswordMinLen:  8,
		PasswordMaxLen:  128,
	}
}

type svcMocks struct {
	dir    *mocks.MockDirectory
	tokens *mocks.MockCredentialStorage
	resets *mocks.MockResetStorage
	sender *mocks.MockSender
}

func newSvc(t *testing.T) (*Service, svcMocks, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)

	m := svcMocks{
		dir:    mocks.NewMockDirectory(ctrl),
		tokens: mocks.NewMockCredentialStorage(ctrl),
		resets: mocks.NewMockResetStorage(ctrl),
		sender: mocks.NewMockSender(ctrl),
	}
	svc := New(m.dir, m.tokens, m.resets, token.NewSigner(testCfg()), m.sender, testCfg())
	return svc, m, ctrl
}

func activeUser() *models.User {
	return &models.User{
		ID:       uuid.New(),
		Email:    "user@example.com",
		Username: "user",
		Roles:    []string{"user"},
		IsActive: true,
	}
}

// mintRefresh выпускает refresh-токен тем же Signer, что и сервис.
func mintRefresh(t *testing.T, user *models.User, familyID uuid.UUID) string {
	t.Helper()
	raw, err := token.NewSigner(testCfg()).IssueRefresh(user, familyID, time.Now().UTC())
	require.NoError(t, err)
	return raw
}

func mintAccess(t *testing.T, user *models.User) (string, string) {
	t.Helper()
	raw, jti, err := token.NewSigner(testCfg()).IssueAccess(user, time.Now().UTC())
	require.NoError(t, err)
	return raw, jti
}

// fmtWrap - оборачивает ошибку из storage, имитируя fmt.Errorf("%w").
func fmtWrap(err error) error { return fmt.Errorf("wrapped: %w", err) }

func TestRegister_OK(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	user := activeUser()

	m.dir.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(nil, nil)
	m.dir.EXPECT().UserByUsername(gomock.Any(), "user").Return(nil, nil)
	m.dir.EXPECT().Create(gomock.Any(), gomock.Any()).Return(user, nil)
	m.tokens.EXPECT().
		SaveRefreshToken(gomock.Any(), user.ID, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)

	res, err := svc.Register(ctx, RegisterInput{
		Email:    "User@Example.com",
		Password: "password123",
		Username: "user",
	})
	require.NoError(t, err)
	require.Equal(t, user.ID, res.User.ID)
	require.NotEmpty(t, res.Tokens.AccessToken)
	require.NotEmpty(t, res.Tokens.RefreshToken)
	require.WithinDuration(t, time.Now().Add(testCfg().AccessTokenTTL), res.Tokens.AccessExpiresAt, 2*time.Second)
}

func TestRegister_Validation(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "password123", Username: "user"})
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.Register(ctx, RegisterInput{Email: "u@e.com", Password: "", Username: "user"})
	require.ErrorIs(t, err, ErrEmptyPassword)

	_, err = svc.Register(ctx, RegisterInput{Email: "u@e.com", Password: "short", Username: "user"})
	require.ErrorIs(t, err, ErrWeakPassword)

	_, err = svc.Register(ctx, RegisterInput{Email: "u@e.com", Password: "password123", Username: "   "})
	require.ErrorIs(t, err, ErrEmptyUsername)
}

func TestRegister_EmailTaken(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	m.dir.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(activeUser(), nil)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "password123",
		Username: "user",
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegister_UsernameTaken(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	m.dir.EXPECT().UserByEmail(gomock.Any(), "user@example.com").Return(nil, nil)
	m.dir.EXPECT().UserByUsername(gomock.Any(), "user").Return(activeUser(), nil)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "password123",
		Username: "user",
	})
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegister_RaceOnCreate_MapsToEmailTaken(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	m.dir.EXPECT().UserByEmail(gomock.Any(), gomock.Any()).Return(nil, nil)
	m.dir.EXPECT().UserByUsername(gomock.Any(), gomock.Any()).Return(nil, nil)
	m.dir.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, fmtWrap(storage.ErrAlreadyExists))

	_, err := svc.Register(context.Background(), RegisterInput{
		Email:    "user@example.com",
		Password: "password123",
		Username: "user",
	})
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin_OK(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser()
	m.dir.EXPECT().VerifyCredentials(gomock.Any(), "user@example.com", "password123").Return(user, nil)
	m.tokens.EXPECT().
		SaveRefreshToken(gomock.Any(), user.ID, gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)

	res, err := svc.Login(context.Background(), "User@Example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, user.ID, res.User.ID)
}

func TestLogin_Rejected(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	// Неизвестный email, неверный пароль и неактивный аккаунт для сервиса
	// неразличимы: справочник возвращает (nil, nil).
	m.dir.EXPECT().VerifyCredentials(gomock.Any(), "user@example.com", "wrong").Return(nil, nil)

	_, err := svc.Login(ctx, "user@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "not-an-email", "password123")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "user@example.com", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefresh_OK_RotatesFamily(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser()
	oldFamily := uuid.New()
	raw := mintRefresh(t, user, oldFamily)

	var newFamily uuid.UUID
	gomock.InOrder(
		m.tokens.EXPECT().IsBlacklisted(gomock.Any(), raw).Return(false, nil),
		m.tokens.EXPECT().MatchRefreshToken(gomock.Any(), user.ID, raw).Return(oldFamily, true, nil),
		m.dir.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil),
		m.tokens.EXPECT().RevokeFamily(gomock.Any(), oldFamily).Return(nil),
		m.tokens.EXPECT().
			SaveRefreshToken(gomock.Any(), user.ID, gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ uuid.UUID, familyID uuid.UUID, _ string, _ time.Time) error {
				newFamily = familyID
				return nil
			}),
	)

	res, err := svc.Refresh(context.Background(), raw)
	require.NoError(t, err)
	require.NotEmpty(t, res.Tokens.RefreshToken)
	require.NotEqual(t, raw, res.Tokens.RefreshToken)
	require.NotEqual(t, oldFamily, newFamily)
}

func TestRefresh_Replay_RejectedWithoutRevoke(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser()
	raw := mintRefresh(t, user, uuid.New())

	// Токен корректен по подписи, но не найден среди сохранённых —
	// ротация уже произошла. RevokeFamily вызываться не должен.
	m.tokens.EXPECT().IsBlacklisted(gomock.Any(), raw).Return(false, nil)
	m.tokens.EXPECT().MatchRefreshToken(gomock.Any(), user.ID, raw).Return(uuid.Nil, false, nil)

	_, err := svc.Refresh(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_Blacklisted(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	raw := mintRefresh(t, activeUser(), uuid.New())
	m.tokens.EXPECT().IsBlacklisted(gomock.Any(), raw).Return(true, nil)

	_, err := svc.Refresh(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_GarbageAndExpired(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.Refresh(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)

	cfg := testCfg()
	cfg.RefreshTokenTTL = -time.Hour
	expired, serr := token.NewSigner(cfg).IssueRefresh(activeUser(), uuid.New(), time.Now().UTC())
	require.NoError(t, serr)

	_, err = svc.Refresh(context.Background(), expired)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestRefresh_AccessTokenRejected(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	// Access-токен той же подписи не проходит как refresh.
	raw, _ := mintAccess(t, activeUser())

	_, err := svc.Refresh(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefresh_InactiveUser(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser()
	user.IsActive = false
	family := uuid.New()
	raw := mintRefresh(t, user, family)

	m.tokens.EXPECT().IsBlacklisted(gomock.Any(), raw).Return(false, nil)
	m.tokens.EXPECT().MatchRefreshToken(gomock.Any(), user.ID, raw).Return(family, true, nil)
	m.dir.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)

	_, err := svc.Refresh(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestLogout_RevokesFamilyAndBlacklistsBoth(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser()
	family := uuid.New()
	rawRefresh := mintRefresh(t, user, family)
	rawAccess, jti := mintAccess(t, user)

	m.tokens.EXPECT().RevokeFamily(gomock.Any(), family).Return(nil)
	m.tokens.EXPECT().Blacklist(gomock.Any(), rawRefresh, "", gomock.Any()).Return(nil)
	m.tokens.EXPECT().Blacklist(gomock.Any(), rawAccess, jti, gomock.Any()).Return(nil)

	svc.Logout(context.Background(), user.ID, rawAccess, rawRefresh)
}

func TestLogout_WithCache_MarksTokenID(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	blc := mocks.NewMockBlacklistCache(ctrl)
	svc.SetBlacklistCache(blc)

	user := activeUser()
	rawAccess, jti := mintAccess(t, user)

	m.tokens.EXPECT().Blacklist(gomock.Any(), rawAccess, jti, gomock.Any()).Return(nil)
	blc.EXPECT().MarkTokenID(gomock.Any(), jti, gomock.Any()).Return(nil)

	svc.Logout(context.Background(), user.ID, rawAccess, "")
}

func TestLogout_GarbageTokens_BestEffort(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	// Невалидные токены не приводят ни к вызовам хранилища, ни к панике.
	svc.Logout(context.Background(), uuid.New(), "garbage", "garbage")
}

func TestLogout_StorageFailure_Swallowed(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser()
	family := uuid.New()
	rawRefresh := mintRefresh(t, user, family)

	m.tokens.EXPECT().RevokeFamily(gomock.Any(), family).Return(errors.New("db down"))
	m.tokens.EXPECT().Blacklist(gomock.Any(), rawRefresh, "", gomock.Any()).Return(errors.New("db down"))

	svc.Logout(context.Background(), user.ID, "", rawRefresh)
}

func TestValidateAccess_OK(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser()
	raw, jti := mintAccess(t, user)

	m.tokens.EXPECT().IsTokenIDBlacklisted(gomock.Any(), jti).Return(false, nil)
	m.tokens.EXPECT().IsBlacklisted(gomock.Any(), raw).Return(false, nil)
	m.dir.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)

	got, err := svc.ValidateAccess(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
}

func TestValidateAccess_BlacklistedByID(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	raw, jti := mintAccess(t, activeUser())
	m.tokens.EXPECT().IsTokenIDBlacklisted(gomock.Any(), jti).Return(true, nil)

	_, err := svc.ValidateAccess(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccess_CacheHit_SkipsStorage(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	blc := mocks.NewMockBlacklistCache(ctrl)
	svc.SetBlacklistCache(blc)

	raw, jti := mintAccess(t, activeUser())
	blc.EXPECT().IsTokenIDBlacklisted(gomock.Any(), jti).Return(true, nil)

	_, err := svc.ValidateAccess(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccess_CacheError_FallsThroughToStorage(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	blc := mocks.NewMockBlacklistCache(ctrl)
	svc.SetBlacklistCache(blc)

	user := activeUser()
	raw, jti := mintAccess(t, user)

	blc.EXPECT().IsTokenIDBlacklisted(gomock.Any(), jti).Return(false, errors.New("redis down"))
	m.tokens.EXPECT().IsTokenIDBlacklisted(gomock.Any(), jti).Return(false, nil)
	m.tokens.EXPECT().IsBlacklisted(gomock.Any(), raw).Return(false, nil)
	m.dir.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)

	got, err := svc.ValidateAccess(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)
}

func TestValidateAccess_InactiveOrMissingUser(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser()
	raw, jti := mintAccess(t, user)

	m.tokens.EXPECT().IsTokenIDBlacklisted(gomock.Any(), jti).Return(false, nil).Times(2)
	m.tokens.EXPECT().IsBlacklisted(gomock.Any(), raw).Return(false, nil).Times(2)

	m.dir.EXPECT().UserByID(gomock.Any(), user.ID).Return(nil, nil)
	_, err := svc.ValidateAccess(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)

	inactive := *user
	inactive.IsActive = false
	m.dir.EXPECT().UserByID(gomock.Any(), user.ID).Return(&inactive, nil)
	_, err = svc.ValidateAccess(context.Background(), raw)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateAccess_Expired(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	cfg := testCfg()
	cfg.AccessTokenTTL = -time.Hour
	raw, _, err := token.NewSigner(cfg).IssueAccess(activeUser(), time.Now().UTC())
	require.NoError(t, err)

	_, verr := svc.ValidateAccess(context.Background(), raw)
	require.ErrorIs(t, verr, ErrTokenExpired)
}

func TestProfile(t *testing.T) {
	t.Parallel()

	svc, m, ctrl := newSvc(t)
	defer ctrl.Finish()

	user := activeUser()
	m.dir.EXPECT().UserByID(gomock.Any(), user.ID).Return(user, nil)

	profile, err := svc.Profile(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, user.Email, profile.Email)

	missing := uuid.New()
	m.dir.EXPECT().UserByID(gomock.Any(), missing).Return(nil, nil)

	_, err = svc.Profile(context.Background(), missing)
	require.ErrorIs(t, err, ErrUserNotFound)
}
