package models

import "fmt"

// Role — уровень доступа пользователя портала.
// Роли упорядочены по возрастанию привилегий: user < admin < top_admin.
type Role string

const (
	RoleUser     Role = "user"
	RoleAdmin    Role = "admin"
	RoleTopAdmin Role = "top_admin"
)

// Roles — все допустимые роли в порядке возрастания привилегий.
var Roles = []Role{RoleUser, RoleAdmin, RoleTopAdmin}

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// Rank возвращает порядковый номер привилегии (0 — неизвестная роль).
func (r Role) Rank() int {
	switch r {
	case RoleUser:
		return 1
	case RoleAdmin:
		return 2
	case RoleTopAdmin:
		return 3
	default:
		return 0
	}
}

func (r Role) String() string { return string(r) }

// ParseRole разбирает строковое представление роли.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}

	return r, nil
}
