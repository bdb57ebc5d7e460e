// Package testutil provides shared fixtures for tests that need seeded
// schools, students and ledger rows.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/schoolbill/backend/internal/domain/billing"
	"github.com/schoolbill/backend/internal/domain/identity"
	"github.com/schoolbill/backend/internal/domain/school"
	"github.com/schoolbill/backend/internal/infrastructure/persistence"
)

// AdminActor returns an actor with unrestricted access.
func AdminActor() identity.Actor {
	return identity.Actor{UserID: uuid.New(), Username: "root", Role: identity.RoleAdmin}
}

// StaffActor returns an actor scoped to the given school.
func StaffActor(schoolID uuid.UUID) identity.Actor {
	return identity.Actor{UserID: uuid.New(), Username: "staff", Role: identity.RoleSchoolStaff, SchoolID: &schoolID}
}

// SeedSchool persists a school and returns it.
func SeedSchool(t *testing.T, db *gorm.DB, name string) *school.School {
	t.Helper()
	s, err := school.NewSchool(name, "", "", "")
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormSchoolRepository(db).Create(context.Background(), s))
	return s
}

// SeedStudent persists a student enrolled in the given school.
func SeedStudent(t *testing.T, db *gorm.DB, schoolID uuid.UUID) *school.Student {
	t.Helper()
	st, err := school.NewStudent("Grace", "Hopper", "grace@example.com", nil, time.Now(), schoolID)
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormStudentRepository(db).Create(context.Background(), st))
	return st
}

// SeedInvoice persists a pending USD invoice for the student.
func SeedInvoice(t *testing.T, db *gorm.DB, studentID uuid.UUID, number string, amountCents int64) *billing.Invoice {
	t.Helper()
	now := time.Now()
	inv, err := billing.NewInvoice(number, amountCents, "USD", "", now, now.AddDate(0, 1, 0), "", studentID)
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormInvoiceRepository(db).Create(context.Background(), inv))
	return inv
}

// SeedPayment persists a USD cash payment for the student.
func SeedPayment(t *testing.T, db *gorm.DB, studentID uuid.UUID, amountCents int64, status billing.PaymentStatus) *billing.Payment {
	t.Helper()
	p, err := billing.NewPayment(amountCents, "USD", status, billing.PaymentMethodCash, studentID)
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormPaymentRepository(db).Create(context.Background(), p))
	return p
}
