package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Availability string

const (
	Available Availability = "AVAILABLE"
	Reserved  Availability = "RESERVED"
	OnLoan    Availability = "ON_LOAN"
)

type FineStatus string

const (
	FinePending FineStatus = "PENDING"
	FinePaid    FineStatus = "PAID"
)

// AccountKind is the discriminant of the Account variants.
type AccountKind string

const (
	KindMember    AccountKind = "MEMBER"
	KindLibrarian AccountKind = "LIBRARIAN"
)

type Author struct {
	ID        string `gorm:"type:varchar(36);primaryKey"`
	FirstName string `gorm:"size:80"`
	LastName  string `gorm:"size:80;not null;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Book struct {
	ISBN            string `gorm:"column:isbn;size:20;primaryKey"`
	Title           string `gorm:"not null;uniqueIndex"`
	SubjectCategory string `gorm:"size:80"`
	RackNumber      string `gorm:"size:20"`
	PublicationDate time.Time
	AuthorID        string `gorm:"type:varchar(36);not null;index"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	Author Author `gorm:"foreignKey:AuthorID"`
}

// Copy is a physical instance of a Book. Availability is the cached state,
// kept in step with the copy's open reservations.
type Copy struct {
	Code         string          `gorm:"size:40;primaryKey"`
	BookISBN     string          `gorm:"column:book_isbn;size:20;not null;index"`
	Price        decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Availability Availability    `gorm:"size:20;not null;default:'AVAILABLE'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Reservation is open until ReturnedAt is set.
type Reservation struct {
	ID           string       `gorm:"type:varchar(36);primaryKey"`
	AccountID    string       `gorm:"type:varchar(36);not null;index"`
	CopyCode     string       `gorm:"size:40;not null;index"`
	BookISBN     string       `gorm:"column:book_isbn;size:20;not null;index"`
	StartDate    time.Time    `gorm:"not null"`
	EndDate      time.Time    `gorm:"not null"`
	Availability Availability `gorm:"size:20;not null"`
	ReturnedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (r Reservation) Open() bool {
	return r.ReturnedAt == nil
}

// Account stores both variants; Active is only set for members.
type Account struct {
	ID           string      `gorm:"type:varchar(36);primaryKey"`
	Username     string      `gorm:"size:80;not null;uniqueIndex"`
	PasswordHash string      `gorm:"not null"`
	FirstName    string      `gorm:"size:80"`
	LastName     string      `gorm:"size:80"`
	Kind         AccountKind `gorm:"column:account_type;size:20;not null"`
	Active       *bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Fine struct {
	ID            string          `gorm:"type:varchar(36);primaryKey"`
	AccountID     string          `gorm:"type:varchar(36);not null;index"`
	ReservationID string          `gorm:"type:varchar(36);index"`
	Price         decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Status        FineStatus      `gorm:"size:20;not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// All lists every entity for AutoMigrate.
func All() []interface{} {
	return []interface{}{&Author{}, &Book{}, &Copy{}, &Account{}, &Reservation{}, &Fine{}}
}
