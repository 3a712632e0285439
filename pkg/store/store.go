// Package store is the persistence collaborator of the lending service: id
// based lookups, set queries and writes for every entity, plus transactions.
package store

import (
	"context"
	"errors"
	"time"

	"library_management/pkg/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

type BookFilter struct {
	Title          string
	Category       string
	AuthorLastName string
	PublishedFrom  *time.Time
}

type AccountStore interface {
	FindAccountByID(ctx context.Context, id string) (models.Account, error)
	FindAccountByUsername(ctx context.Context, username string) (models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	SaveAccount(ctx context.Context, account *models.Account) error
}

type CatalogStore interface {
	FindAuthorByID(ctx context.Context, id string) (models.Author, error)
	CreateAuthor(ctx context.Context, author *models.Author) error

	FindBookByID(ctx context.Context, isbn string) (models.Book, error)
	FindBookByTitle(ctx context.Context, title string) (models.Book, error)
	ListBooks(ctx context.Context, filter BookFilter, offset, limit int) ([]models.Book, int64, error)
	CreateBook(ctx context.Context, book *models.Book) error
	DeleteBook(ctx context.Context, book *models.Book) error

	FindCopiesByBook(ctx context.Context, isbn string) ([]models.Copy, error)
	// LockCopiesByBook is FindCopiesByBook holding row locks until the
	// surrounding transaction ends.
	LockCopiesByBook(ctx context.Context, isbn string) ([]models.Copy, error)
	FindCopyByID(ctx context.Context, code string) (models.Copy, error)
	CreateCopy(ctx context.Context, c *models.Copy) error
	SaveCopy(ctx context.Context, c *models.Copy) error
	DeleteCopy(ctx context.Context, c *models.Copy) error
}

type ReservationStore interface {
	FindReservationsByAccount(ctx context.Context, accountID string) ([]models.Reservation, error)
	FindReservationsByCopy(ctx context.Context, code string) ([]models.Reservation, error)
	// FindOwnersByCopyIDs returns the accounts holding one of the copies on loan.
	FindOwnersByCopyIDs(ctx context.Context, codes []string) ([]models.Account, error)
	SaveReservation(ctx context.Context, r *models.Reservation) error
	DeleteReservation(ctx context.Context, r *models.Reservation) error
}

type FineStore interface {
	SaveFine(ctx context.Context, f *models.Fine) error
	FindFinesByAccount(ctx context.Context, accountID string) ([]models.Fine, error)
}

type Repository interface {
	AccountStore
	CatalogStore
	ReservationStore
	FineStore

	// WithinTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(Repository) error) error
}
