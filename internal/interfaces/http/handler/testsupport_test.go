package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	appbilling "github.com/schoolbill/backend/internal/application/billing"
	appidentity "github.com/schoolbill/backend/internal/application/identity"
	appschool "github.com/schoolbill/backend/internal/application/school"
	"github.com/schoolbill/backend/internal/domain/billing"
	"github.com/schoolbill/backend/internal/domain/identity"
	"github.com/schoolbill/backend/internal/domain/school"
	"github.com/schoolbill/backend/internal/infrastructure/auth"
	"github.com/schoolbill/backend/internal/infrastructure/config"
	"github.com/schoolbill/backend/internal/infrastructure/persistence"
	"github.com/schoolbill/backend/internal/infrastructure/persistence/models"
	"github.com/schoolbill/backend/internal/interfaces/http/dto"
	"github.com/schoolbill/backend/internal/interfaces/http/middleware"
	"github.com/schoolbill/backend/internal/interfaces/http/router"
)

// lockFreePayments substitutes a plain read for the FOR UPDATE read since
// SQLite cannot parse SELECT ... FOR UPDATE.
type lockFreePayments struct {
	billing.PaymentRepository
}

func (r lockFreePayments) FindByIDLocked(ctx context.Context, id uuid.UUID) (*billing.Payment, error) {
	return r.FindByID(ctx, id)
}

type lockFreeTx struct {
	billing.LedgerTx
}

func (t lockFreeTx) Payments() billing.PaymentRepository {
	return lockFreePayments{t.LedgerTx.Payments()}
}

type lockFreeLedger struct {
	inner billing.LedgerStore
}

func (l lockFreeLedger) Invoices() billing.InvoiceRepository { return l.inner.Invoices() }
func (l lockFreeLedger) Payments() billing.PaymentRepository {
	return lockFreePayments{l.inner.Payments()}
}
func (l lockFreeLedger) Allocations() billing.AllocationRepository { return l.inner.Allocations() }

func (l lockFreeLedger) InTx(ctx context.Context, fn func(tx billing.LedgerTx) error) error {
	return l.inner.InTx(ctx, func(tx billing.LedgerTx) error {
		return fn(lockFreeTx{tx})
	})
}

// testApp wires the full HTTP stack against an in-memory database.
type testApp struct {
	db         *gorm.DB
	engine     *gin.Engine
	jwtService *auth.JWTService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.SchoolModel{},
		&models.StudentModel{},
		&models.UserModel{},
		&models.InvoiceModel{},
		&models.PaymentModel{},
		&models.AllocationModel{},
	))

	ledger := lockFreeLedger{inner: persistence.NewGormLedgerStore(db)}
	schoolRepo := persistence.NewGormSchoolRepository(db)
	studentRepo := persistence.NewGormStudentRepository(db)
	userRepo := persistence.NewGormUserRepository(db)

	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-that-is-long-enough",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		Issuer:                 "schoolbill-test",
	})
	blacklist := auth.NewInMemoryTokenBlacklist()
	log := zap.NewNop()

	authService := appidentity.NewAuthService(userRepo, jwtService, blacklist, log)
	userService := appidentity.NewUserService(userRepo, schoolRepo)
	schoolService := appschool.NewSchoolService(schoolRepo)
	studentService := appschool.NewStudentService(studentRepo, schoolRepo)
	invoiceService := appbilling.NewInvoiceService(ledger, studentRepo, log)
	paymentService := appbilling.NewPaymentService(ledger, studentRepo, log)
	allocationService := appbilling.NewAllocationService(ledger, log)
	balanceService := appbilling.NewBalanceService(ledger, schoolRepo, studentRepo)

	engine := gin.New()
	r := router.New(engine)
	r.Use(
		middleware.RequestID(),
		middleware.Auth(middleware.AuthConfig{
			JWTService: jwtService,
			Blacklist:  blacklist,
			SkipPaths: []string{
				"/api/v1/auth/login",
				"/api/v1/auth/refresh",
				"/api/v1/system/health",
				"/api/v1/system/info",
			},
			Logger: log,
		}),
	)
	r.Register(
		NewSystemHandler(nil),
		NewAuthHandler(authService),
		NewUserHandler(userService),
		NewSchoolHandler(schoolService, balanceService),
		NewStudentHandler(studentService, balanceService),
		NewInvoiceHandler(invoiceService),
		NewPaymentHandler(paymentService),
		NewAllocationHandler(allocationService),
	)
	r.Setup()

	return &testApp{db: db, engine: engine, jwtService: jwtService}
}

func (a *testApp) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *testApp) adminToken(t *testing.T) string {
	t.Helper()
	return a.token(t, uuid.New(), "root", identity.RoleAdmin, nil)
}

func (a *testApp) staffToken(t *testing.T, schoolID uuid.UUID) string {
	t.Helper()
	return a.token(t, uuid.New(), "staff", identity.RoleSchoolStaff, &schoolID)
}

func (a *testApp) token(t *testing.T, userID uuid.UUID, username string, role identity.Role, schoolID *uuid.UUID) string {
	t.Helper()
	pair, err := a.jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		UserID:   userID,
		Username: username,
		Role:     string(role),
		SchoolID: schoolID,
	})
	require.NoError(t, err)
	return pair.AccessToken
}

func (a *testApp) seedSchool(t *testing.T, name string) *school.School {
	t.Helper()
	s, err := school.NewSchool(name, "", "", "")
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormSchoolRepository(a.db).Create(context.Background(), s))
	return s
}

func (a *testApp) seedStudent(t *testing.T, schoolID uuid.UUID) *school.Student {
	t.Helper()
	st, err := school.NewStudent("Ada", "Lovelace", "ada@example.com", nil, time.Now(), schoolID)
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormStudentRepository(a.db).Create(context.Background(), st))
	return st
}

func (a *testApp) seedInvoice(t *testing.T, studentID uuid.UUID, number string, amountCents int64) *billing.Invoice {
	t.Helper()
	now := time.Now()
	inv, err := billing.NewInvoice(number, amountCents, "USD", "", now, now.AddDate(0, 1, 0), "", studentID)
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormInvoiceRepository(a.db).Create(context.Background(), inv))
	return inv
}

func (a *testApp) seedPayment(t *testing.T, studentID uuid.UUID, amountCents int64, status billing.PaymentStatus) *billing.Payment {
	t.Helper()
	p, err := billing.NewPayment(amountCents, "USD", status, billing.PaymentMethodCash, studentID)
	require.NoError(t, err)
	require.NoError(t, persistence.NewGormPaymentRepository(a.db).Create(context.Background(), p))
	return p
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func dataField(t *testing.T, resp dto.Response, key string) interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is not an object")
	return data[key]
}
