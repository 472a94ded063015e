package directory_test

import (
	"context"
	"errors"
	"testing"

	"credential-service/internal/directory"
	"credential-service/internal/models"
	"credential-service/internal/storage"
	"credential-service/mocks"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newDir(t *testing.T) (*directory.Service, *mocks.MockUserStorage, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockUserStorage(ctrl)
	return directory.New(st, bcrypt.MinCost), st, ctrl
}

func TestCreate_HashesPassword(t *testing.T) {
	t.Parallel()

	dir, st, ctrl := newDir(t)
	defer ctrl.Finish()

	var saved *models.User
	st.EXPECT().
		SaveUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u *models.User) error {
			saved = u
			return nil
		})

	user, err := dir.Create(context.Background(), directory.NewUser{
		Email:    "user@example.com",
		Username: "user",
		Password: "password123",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, user.ID)
	require.True(t, user.IsActive)
	require.Equal(t, []string{"user"}, user.Roles)

	// В БД уходит bcrypt-хэш, не сырой пароль.
	require.NotEqual(t, "password123", saved.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(saved.PasswordHash), []byte("password123")))
}

func TestCreate_UniqueViolation_Propagated(t *testing.T) {
	t.Parallel()

	dir, st, ctrl := newDir(t)
	defer ctrl.Finish()

	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists)

	_, err := dir.Create(context.Background(), directory.NewUser{
		Email:    "user@example.com",
		Username: "user",
		Password: "password123",
	})
	require.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestVerifyCredentials(t *testing.T) {
	t.Parallel()

	dir, st, ctrl := newDir(t)
	defer ctrl.Finish()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{
		ID:           uuid.New(),
		Email:        "user@example.com",
		PasswordHash: string(hash),
		IsActive:     true,
	}

	t.Run("ok", func(t *testing.T) {
		st.EXPECT().UserByEmail(gomock.Any(), user.Email).Return(user, nil)

		got, err := dir.VerifyCredentials(context.Background(), user.Email, "password123")
		require.NoError(t, err)
		require.Equal(t, user.ID, got.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		st.EXPECT().UserByEmail(gomock.Any(), user.Email).Return(user, nil)

		got, err := dir.VerifyCredentials(context.Background(), user.Email, "wrong-password")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("unknown email", func(t *testing.T) {
		st.EXPECT().UserByEmail(gomock.Any(), "ghost@example.com").Return(nil, storage.ErrNotFound)

		got, err := dir.VerifyCredentials(context.Background(), "ghost@example.com", "password123")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("inactive account", func(t *testing.T) {
		inactive := *user
		inactive.IsActive = false
		st.EXPECT().UserByEmail(gomock.Any(), user.Email).Return(&inactive, nil)

		got, err := dir.VerifyCredentials(context.Background(), user.Email, "password123")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("storage error", func(t *testing.T) {
		st.EXPECT().UserByEmail(gomock.Any(), user.Email).Return(nil, errors.New("db down"))

		_, err := dir.VerifyCredentials(context.Background(), user.Email, "password123")
		require.Error(t, err)
	})
}

func TestUserLookups_NotFoundIsNil(t *testing.T) {
	t.Parallel()

	dir, st, ctrl := newDir(t)
	defer ctrl.Finish()

	id := uuid.New()
	st.EXPECT().UserByID(gomock.Any(), id).Return(nil, storage.ErrNotFound)
	st.EXPECT().UserByEmail(gomock.Any(), "a@b.c").Return(nil, storage.ErrNotFound)
	st.EXPECT().UserByUsername(gomock.Any(), "ghost").Return(nil, storage.ErrNotFound)

	got, err := dir.UserByID(context.Background(), id)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = dir.UserByEmail(context.Background(), "a@b.c")
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = dir.UserByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestUpdatePassword_StoresNewHash(t *testing.T) {
	t.Parallel()

	dir, st, ctrl := newDir(t)
	defer ctrl.Finish()

	id := uuid.New()

	var savedHash string
	st.EXPECT().
		UpdatePasswordHash(gomock.Any(), id, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, hash string) error {
			savedHash = hash
			return nil
		})

	require.NoError(t, dir.UpdatePassword(context.Background(), id, "newpassword1"))
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(savedHash), []byte("newpassword1")))
}
