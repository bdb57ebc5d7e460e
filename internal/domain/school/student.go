package school

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/schoolbill/backend/internal/domain/shared"
)

// Student belongs to exactly one school and is the anchor for invoices and
// payments.
type Student struct {
	shared.BaseEntity
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	EnrollmentDate time.Time  `json:"enrollment_date"`
	SchoolID       uuid.UUID  `json:"school_id"`
}

func NewStudent(firstName, lastName, email string, dateOfBirth *time.Time, enrollmentDate time.Time, schoolID uuid.UUID) (*Student, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, shared.NewDomainError("INVALID_STUDENT_NAME", "student first and last name cannot be empty")
	}
	if schoolID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SCHOOL_ID", "student must belong to a school")
	}
	if enrollmentDate.IsZero() {
		enrollmentDate = time.Now()
	}

	return &Student{
		BaseEntity:     shared.NewBaseEntity(),
		FirstName:      firstName,
		LastName:       lastName,
		Email:          email,
		DateOfBirth:    dateOfBirth,
		EnrollmentDate: enrollmentDate,
		SchoolID:       schoolID,
	}, nil
}

func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

func (s *Student) UpdateProfile(firstName, lastName, email string, dateOfBirth *time.Time) error {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return shared.NewDomainError("INVALID_STUDENT_NAME", "student first and last name cannot be empty")
	}
	s.FirstName = firstName
	s.LastName = lastName
	s.Email = email
	s.DateOfBirth = dateOfBirth
	s.Touch()
	return nil
}

// BalanceStatement summarizes a student's financial position. Amounts are
// cents. Currency is empty when the student's invoices and payments span
// more than one currency, in which case the totals are still reported but
// cannot be labeled with a single unit.
type BalanceStatement struct {
	StudentID        uuid.UUID `json:"student_id"`
	Currency         string    `json:"currency,omitempty"`
	InvoicedCents    int64     `json:"invoiced_cents"`
	PaidCents        int64     `json:"paid_cents"`
	OutstandingCents int64     `json:"outstanding_cents"`
	CollectionRatio  string    `json:"collection_ratio"`
}
