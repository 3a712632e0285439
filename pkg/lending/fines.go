package lending

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"library_management/pkg/availability"
	"library_management/pkg/faults"
	"library_management/pkg/models"
	"library_management/pkg/store"
)

type fineRepository interface {
	store.AccountStore
	store.FineStore
}

// FineCalculator charges a flat fine for loans kept longer than maxDays.
type FineCalculator struct {
	repo    fineRepository
	maxDays int
	price   decimal.Decimal
}

func NewFineCalculator(repo fineRepository, maxDays int, price decimal.Decimal) *FineCalculator {
	return &FineCalculator{repo: repo, maxDays: maxDays, price: price}
}

// Overdue reports whether the loan window of r is longer than allowed.
func (f *FineCalculator) Overdue(r models.Reservation) bool {
	return availability.DaysBetween(r.StartDate, r.EndDate) > f.maxDays
}

// MaybeCreateFine stores a PENDING fine for the borrower of r when the loan
// ran late and returns it. It returns nil when no fine is due.
func (f *FineCalculator) MaybeCreateFine(ctx context.Context, r models.Reservation) (*models.Fine, error) {
	if !f.Overdue(r) {
		return nil, nil
	}

	account, err := f.repo.FindAccountByID(ctx, r.AccountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, faults.AccountNotFound(r.AccountID)
	}
	if err != nil {
		return nil, fmt.Errorf("fine for reservation %s: %w", r.ID, err)
	}

	fine := &models.Fine{
		ID:            uuid.New().String(),
		AccountID:     account.ID,
		ReservationID: r.ID,
		Price:         f.price,
		Status:        models.FinePending,
	}
	if err := f.repo.SaveFine(ctx, fine); err != nil {
		return nil, fmt.Errorf("fine for reservation %s: %w", r.ID, err)
	}
	return fine, nil
}
