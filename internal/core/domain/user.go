package domain

import "time"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleCustomer, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserFilter struct {
	Search string
	Role   Role
	Page   int
	Limit  int
}

func (f UserFilter) Offset() int {
	return offset(f.Page, f.Limit)
}
