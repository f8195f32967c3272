package model

import (
	"strings"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin      UserRole = "admin"
	UserRoleManager    UserRole = "manager"
	UserRoleSupervisor UserRole = "supervisor"
	UserRoleTechnician UserRole = "technician"
	UserRoleCashier    UserRole = "cashier"
)

// Principal текущий пользователь, извлечённый из токена доступа
type Principal struct {
	UserID uuid.UUID
	Role   UserRole
}

func (p Principal) HasRole(roles ...UserRole) bool {
	for _, role := range roles {
		if strings.EqualFold(string(p.Role), string(role)) {
			return true
		}
	}
	return false
}
