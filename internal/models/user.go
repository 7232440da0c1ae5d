package models

import (
	"strings"
	"time"
)

// Role determines what a user may approve and administer.
type Role string

const (
	RoleEmpleado         Role = "EMPLEADO"
	RoleGerente          Role = "GERENTE"
	RoleFinanzas         Role = "FINANZAS"
	RoleDireccionGeneral Role = "DIRECCION_GENERAL"
)

// Roles lists every valid role.
var Roles = []Role{RoleEmpleado, RoleGerente, RoleFinanzas, RoleDireccionGeneral}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// User is an employee account.
type User struct {
	Base
	Email               string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Password            string     `gorm:"not null" json:"-"`
	FirstName           string     `gorm:"size:150" json:"first_name"`
	LastName            string     `gorm:"size:150" json:"last_name"`
	Role                Role       `gorm:"size:20;not null;default:EMPLEADO;index" json:"role"`
	AreaID              *string    `gorm:"type:uuid;index" json:"area_id,omitempty"`
	LocationID          *string    `gorm:"type:uuid" json:"location_id,omitempty"`
	CostCenterID        *string    `gorm:"type:uuid" json:"cost_center_id,omitempty"`
	Phone               string     `gorm:"size:20" json:"phone"`
	IsOutOfOffice       bool       `gorm:"default:false" json:"is_out_of_office"`
	IsActive            bool       `gorm:"default:true" json:"is_active"`
	RefreshTokenHash    string     `gorm:"size:64" json:"-"`
	FailedLoginAttempts int        `gorm:"default:0" json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty"`

	Area       *Area       `gorm:"foreignKey:AreaID" json:"area,omitempty"`
	Location   *Location   `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	CostCenter *CostCenter `gorm:"foreignKey:CostCenterID" json:"cost_center,omitempty"`
}

// FullName returns "First Last", falling back to the email.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// InArea reports whether the user belongs to the given area.
func (u *User) InArea(areaID *string) bool {
	return u.AreaID != nil && areaID != nil && *u.AreaID == *areaID
}
