package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/schoolbill/backend/internal/domain/billing"
)

// InvoiceModel is the persistence model for the Invoice entity. Amounts are
// stored as bigint cents.
type InvoiceModel struct {
	BaseModel
	InvoiceNumber string                `gorm:"type:varchar(50);not null;uniqueIndex"`
	AmountCents   int64                 `gorm:"not null"`
	Currency      string                `gorm:"type:varchar(3);not null"`
	Status        billing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	IssueDate     time.Time             `gorm:"not null"`
	DueDate       time.Time             `gorm:"not null"`
	Description   string                `gorm:"type:text"`
	StudentID     uuid.UUID             `gorm:"type:uuid;not null;index"`
	Student       *StudentModel         `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	return &billing.Invoice{
		BaseEntity:    m.BaseModel.ToDomain(),
		InvoiceNumber: m.InvoiceNumber,
		AmountCents:   m.AmountCents,
		Currency:      m.Currency,
		Status:        m.Status,
		IssueDate:     m.IssueDate,
		DueDate:       m.DueDate,
		Description:   m.Description,
		StudentID:     m.StudentID,
	}
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainBaseEntity(inv.BaseEntity)
	m.InvoiceNumber = inv.InvoiceNumber
	m.AmountCents = inv.AmountCents
	m.Currency = inv.Currency
	m.Status = inv.Status
	m.IssueDate = inv.IssueDate
	m.DueDate = inv.DueDate
	m.Description = inv.Description
	m.StudentID = inv.StudentID
}

// PaymentModel is the persistence model for the Payment entity.
type PaymentModel struct {
	BaseModel
	AmountCents int64                 `gorm:"not null"`
	Currency    string                `gorm:"type:varchar(3);not null"`
	Status      billing.PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Method      billing.PaymentMethod `gorm:"column:payment_method;type:varchar(20);not null"`
	StudentID   uuid.UUID             `gorm:"type:uuid;not null;index"`
	Student     *StudentModel         `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment entity.
func (m *PaymentModel) ToDomain() *billing.Payment {
	return &billing.Payment{
		BaseEntity:  m.BaseModel.ToDomain(),
		AmountCents: m.AmountCents,
		Currency:    m.Currency,
		Status:      m.Status,
		Method:      m.Method,
		StudentID:   m.StudentID,
	}
}

// FromDomain populates the persistence model from a domain Payment entity.
func (m *PaymentModel) FromDomain(p *billing.Payment) {
	m.FromDomainBaseEntity(p.BaseEntity)
	m.AmountCents = p.AmountCents
	m.Currency = p.Currency
	m.Status = p.Status
	m.Method = p.Method
	m.StudentID = p.StudentID
}

// AllocationModel is the persistence model for the Allocation join entity.
// Deleting an invoice or payment that still has allocations is blocked at
// the database level (RESTRICT), mirroring the application-level guards.
type AllocationModel struct {
	ID          uuid.UUID     `gorm:"type:uuid;primary_key"`
	PaymentID   uuid.UUID     `gorm:"type:uuid;not null;index"`
	InvoiceID   uuid.UUID     `gorm:"type:uuid;not null;index"`
	AmountCents int64         `gorm:"not null"`
	CreatedAt   time.Time     `gorm:"not null"`
	Payment     *PaymentModel `gorm:"foreignKey:PaymentID;constraint:OnDelete:RESTRICT"`
	Invoice     *InvoiceModel `gorm:"foreignKey:InvoiceID;constraint:OnDelete:RESTRICT"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "payment_allocations"
}

// ToDomain converts the persistence model to a domain Allocation entity.
func (m *AllocationModel) ToDomain() *billing.Allocation {
	return &billing.Allocation{
		ID:          m.ID,
		PaymentID:   m.PaymentID,
		InvoiceID:   m.InvoiceID,
		AmountCents: m.AmountCents,
		CreatedAt:   m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain Allocation entity.
func (m *AllocationModel) FromDomain(a *billing.Allocation) {
	m.ID = a.ID
	m.PaymentID = a.PaymentID
	m.InvoiceID = a.InvoiceID
	m.AmountCents = a.AmountCents
	m.CreatedAt = a.CreatedAt
}
