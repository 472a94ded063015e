// directory реализует справочник пользователей — внешнего для credential-слоя
// коллаборатора, инкапсулирующего парольное хэширование (bcrypt).
//
// Сервисный слой (service) никогда не трогает хэши напрямую: создание
// пользователя, смена пароля и проверка учётных данных проходят только
// через этот пакет. «Не найден» выражается как (nil, nil) там, где это
// ожидаемый исход, — вызывающий код не обязан различать причины отказа.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credential-service/internal/models"
	"credential-service/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// NewUser — данные для создания пользователя. Пароль приходит сырым
// и хэшируется внутри Create.
type NewUser struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// Directory — контракт справочника пользователей.
type Directory interface {
	// UserByID находит пользователя; (nil, nil) если не найден.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserByEmail находит пользователя по email; (nil, nil) если не найден.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByUsername находит пользователя по username; (nil, nil) если не найден.
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	// Create создаёт пользователя с захэшированным паролем.
	// Нарушение уникальности email/username -> storage.ErrAlreadyExists.
	Create(ctx context.Context, nu NewUser) (*models.User, error)
	// UpdatePassword хэширует и сохраняет новый пароль пользователя.
	UpdatePassword(ctx context.Context, id uuid.UUID, newPassword string) error
	// VerifyCredentials сверяет email+пароль.
	// (nil, nil) — неизвестный email, неверный пароль или неактивный аккаунт:
	// исходы неразличимы для вызывающего.
	VerifyCredentials(ctx context.Context, email, password string) (*models.User, error)
}

// Service — реализация Directory поверх storage.UserStorage.
type Service struct {
	users storage.UserStorage
	cost  int
}

// New создаёт справочник с заданной стоимостью bcrypt для паролей.
func New(users storage.UserStorage, passwordCost int) *Service {
	if passwordCost < bcrypt.MinCost || passwordCost > bcrypt.MaxCost {
		passwordCost = bcrypt.DefaultCost
	}

	return &Service{users: users, cost: passwordCost}
}

// UserByID находит пользователя; (nil, nil) если не найден.
func (s *Service) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const op = "directory.UserByID"

	user, err := s.users.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByEmail находит пользователя по email; (nil, nil) если не найден.
func (s *Service) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "directory.UserByEmail"

	user, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UserByUsername находит пользователя по username; (nil, nil) если не найден.
func (s *Service) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "directory.UserByUsername"

	user, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// Create создаёт пользователя с захэшированным паролем.
func (s *Service) Create(ctx context.Context, nu NewUser) (*models.User, error) {
	const op = "directory.Create"

	hash, err := bcrypt.GenerateFromPassword([]byte(nu.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Email:        nu.Email,
		Username:     nu.Username,
		PasswordHash: string(hash),
		FirstName:    nu.FirstName,
		LastName:     nu.LastName,
		Roles:        []string{"user"},
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// UpdatePassword хэширует и сохраняет новый пароль пользователя.
func (s *Service) UpdatePassword(ctx context.Context, id uuid.UUID, newPassword string) error {
	const op = "directory.UpdatePassword"

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.users.UpdatePasswordHash(ctx, id, string(hash)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// VerifyCredentials сверяет email+пароль; неуспех любого рода — (nil, nil).
func (s *Service) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	const op = "directory.VerifyCredentials"

	user, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Выравниваем время ответа: сравнение с фиктивным хэшем,
			// чтобы «неизвестный email» не отвечал быстрее «неверного пароля».
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !user.IsActive {
		return nil, nil
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil
	}

	return user, nil
}

// dummyHash — валидный bcrypt-хэш случайной строки, используется только
// для выравнивания времени ответа в VerifyCredentials.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Проверка на соответствие интерфейсу Directory.
var _ Directory = (*Service)(nil)
