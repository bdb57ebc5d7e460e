package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolbill/backend/internal/domain/school"
)

// SchoolModel is the persistence model for the School entity.
type SchoolModel struct {
	BaseModel
	Name    string `gorm:"type:varchar(200);not null"`
	Address string `gorm:"type:varchar(500)"`
	Email   string `gorm:"type:varchar(200)"`
	Phone   string `gorm:"type:varchar(50)"`
}

// TableName returns the table name for GORM
func (SchoolModel) TableName() string {
	return "schools"
}

// ToDomain converts the persistence model to a domain School entity.
func (m *SchoolModel) ToDomain() *school.School {
	return &school.School{
		BaseEntity: m.BaseModel.ToDomain(),
		Name:       m.Name,
		Address:    m.Address,
		Email:      m.Email,
		Phone:      m.Phone,
	}
}

// FromDomain populates the persistence model from a domain School entity.
func (m *SchoolModel) FromDomain(s *school.School) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.Name = s.Name
	m.Address = s.Address
	m.Email = s.Email
	m.Phone = s.Phone
}

// StudentModel is the persistence model for the Student entity.
type StudentModel struct {
	BaseModel
	FirstName      string     `gorm:"type:varchar(100);not null"`
	LastName       string     `gorm:"type:varchar(100);not null"`
	Email          string     `gorm:"type:varchar(200)"`
	DateOfBirth    *time.Time `gorm:""`
	EnrollmentDate time.Time  `gorm:"not null"`
	SchoolID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	School         *SchoolModel `gorm:"foreignKey:SchoolID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (StudentModel) TableName() string {
	return "students"
}

// ToDomain converts the persistence model to a domain Student entity.
func (m *StudentModel) ToDomain() *school.Student {
	return &school.Student{
		BaseEntity:     m.BaseModel.ToDomain(),
		FirstName:      m.FirstName,
		LastName:       m.LastName,
		Email:          m.Email,
		DateOfBirth:    m.DateOfBirth,
		EnrollmentDate: m.EnrollmentDate,
		SchoolID:       m.SchoolID,
	}
}

// FromDomain populates the persistence model from a domain Student entity.
func (m *StudentModel) FromDomain(s *school.Student) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.FirstName = s.FirstName
	m.LastName = s.LastName
	m.Email = s.Email
	m.DateOfBirth = s.DateOfBirth
	m.EnrollmentDate = s.EnrollmentDate
	m.SchoolID = s.SchoolID
}
