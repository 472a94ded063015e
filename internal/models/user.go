package models

import (
	"time"

	"github.com/google/uuid"
)

// User — модель пользователя в системе.
//
// PasswordHash хранится только на сервере (bcrypt) и никогда не попадает
// в ответы API — для внешнего представления используется Profile().
type User struct {
	ID           uuid.UUID
	Email        string
	Username     string
	PasswordHash string
	FirstName    string
	LastName     string
	Roles        []string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile — безопасное (без хэша пароля) представление пользователя.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName,omitempty"`
	LastName  string    `json:"lastName,omitempty"`
	Roles     []string  `json:"roles"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile возвращает представление пользователя без секретных полей.
func (u *User) Profile() Profile {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}

	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Roles:     roles,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
