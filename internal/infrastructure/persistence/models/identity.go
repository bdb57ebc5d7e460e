package models

import (
	"github.com/google/uuid"

	"github.com/schoolbill/backend/internal/domain/identity"
)

// UserModel is the persistence model for the User entity.
type UserModel struct {
	BaseModel
	Username     string        `gorm:"type:varchar(100);not null;uniqueIndex"`
	Email        string        `gorm:"type:varchar(200)"`
	PasswordHash string        `gorm:"type:varchar(200);not null"`
	Role         identity.Role `gorm:"type:varchar(20);not null"`
	SchoolID     *uuid.UUID    `gorm:"type:uuid;index"`
	IsActive     bool          `gorm:"not null;default:true"`
	School       *SchoolModel  `gorm:"foreignKey:SchoolID;constraint:OnDelete:SET NULL"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User entity.
func (m *UserModel) ToDomain() *identity.User {
	return &identity.User{
		BaseEntity:   m.BaseModel.ToDomain(),
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         m.Role,
		SchoolID:     m.SchoolID,
		IsActive:     m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain User entity.
func (m *UserModel) FromDomain(u *identity.User) {
	m.FromDomainBaseEntity(u.BaseEntity)
	m.Username = u.Username
	m.Email = u.Email
	m.PasswordHash = u.PasswordHash
	m.Role = u.Role
	m.SchoolID = u.SchoolID
	m.IsActive = u.IsActive
}
