package school

import (
	"strings"

	"github.com/schoolbill/backend/internal/domain/shared"
)

// School is a tenant. Every student, and through students every invoice and
// payment, belongs to exactly one school.
type School struct {
	shared.BaseEntity
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

func NewSchool(name, address, email, phone string) (*School, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shared.NewDomainError("INVALID_SCHOOL_NAME", "school name cannot be empty")
	}

	return &School{
		BaseEntity: shared.NewBaseEntity(),
		Name:       name,
		Address:    address,
		Email:      email,
		Phone:      phone,
	}, nil
}

func (s *School) UpdateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_SCHOOL_NAME", "school name cannot be empty")
	}
	s.Name = name
	s.Touch()
	return nil
}

func (s *School) UpdateContact(address, email, phone string) {
	s.Address = address
	s.Email = email
	s.Phone = phone
	s.Touch()
}
