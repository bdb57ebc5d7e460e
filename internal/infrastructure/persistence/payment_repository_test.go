package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/schoolbill/backend/internal/domain/billing"
	"github.com/schoolbill/backend/internal/domain/shared"
)

// newMockPaymentRepository creates a GormPaymentRepository with a mocked SQL connection
func newMockPaymentRepository(t *testing.T) (*GormPaymentRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormPaymentRepository(gormDB), mock, mockDB
}

func TestGormPaymentRepository_FindByIDLocked(t *testing.T) {
	t.Run("issues SELECT FOR UPDATE", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		paymentID := uuid.New()
		studentID := uuid.New()
		now := time.Now()

		rows := sqlmock.NewRows([]string{
			"id", "created_at", "updated_at",
			"amount_cents", "currency", "status", "payment_method", "student_id",
		}).AddRow(paymentID, now, now, int64(10000), "USD", "COMPLETED", "CASH", studentID)

		mock.ExpectQuery(`SELECT \* FROM "payments" WHERE id = \$1 .* LIMIT \$2 FOR UPDATE`).
			WithArgs(paymentID, 1).
			WillReturnRows(rows)

		payment, err := repo.FindByIDLocked(context.Background(), paymentID)
		require.NoError(t, err)
		assert.Equal(t, paymentID, payment.ID)
		assert.Equal(t, billing.PaymentStatusCompleted, payment.Status)
		assert.Equal(t, int64(10000), payment.AmountCents)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps missing row to not found", func(t *testing.T) {
		repo, mock, mockDB := newMockPaymentRepository(t)
		defer mockDB.Close()

		paymentID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "payments" WHERE id = \$1 .* LIMIT \$2 FOR UPDATE`).
			WithArgs(paymentID, 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := repo.FindByIDLocked(context.Background(), paymentID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
