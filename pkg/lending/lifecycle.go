package lending

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"library_management/pkg/availability"
	"library_management/pkg/faults"
	"library_management/pkg/models"
	"library_management/pkg/store"
)

// Window is the loan window asked for by a caller. Both ends are optional.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Manager drives the reservation lifecycle of copies. Every operation runs
// in one transaction that locks the copies of the book it touches.
type Manager struct {
	repo    store.Repository
	fines   *FineCalculator
	maxDays int
	now     func() time.Time
}

func NewManager(repo store.Repository, fines *FineCalculator, maxDays int) *Manager {
	return &Manager{repo: repo, fines: fines, maxDays: maxDays, now: time.Now}
}

// Reserve picks a copy of the book for the wished window. A window that
// starts today or earlier is an immediate checkout running from now.
func (m *Manager) Reserve(ctx context.Context, isbn, accountID string, wish Window) (models.Reservation, error) {
	now := m.now()
	wished, checkoutNow, err := m.window(wish, now)
	if err != nil {
		return models.Reservation{}, err
	}

	var created models.Reservation
	err = m.repo.WithinTx(ctx, func(tx store.Repository) error {
		copies, err := tx.LockCopiesByBook(ctx, isbn)
		if err != nil {
			return err
		}
		held, err := openReservationFor(ctx, tx, accountID, isbn)
		if err != nil && !errors.Is(err, faults.ErrReservationNotFound) {
			return err
		}
		if err == nil {
			return faults.BookConflict(fmt.Sprintf("account %s already holds reservation %s for book %s", accountID, held.ID, isbn))
		}

		candidates, err := m.candidates(ctx, tx, copies, now)
		if err != nil {
			return err
		}
		picked, err := availability.PickCopy(candidates, &wished)
		if errors.Is(err, availability.ErrNoUsableCopy) {
			return faults.BookConflict(fmt.Sprintf("no copy of book %s is available for the wished dates", isbn))
		}
		if err != nil {
			return err
		}

		created = models.Reservation{
			ID:           uuid.New().String(),
			AccountID:    accountID,
			CopyCode:     picked.Code,
			BookISBN:     isbn,
			StartDate:    wished.Start,
			EndDate:      wished.End,
			Availability: models.Reserved,
		}
		if checkoutNow {
			created.Availability = models.OnLoan
		}
		if err := tx.SaveReservation(ctx, &created); err != nil {
			return err
		}
		return syncCopy(ctx, tx, picked.Code)
	})
	return created, err
}

// window turns a wish into the window that gets stored. An immediate
// checkout starts now and its default end counts from now.
func (m *Manager) window(wish Window, now time.Time) (availability.Range, bool, error) {
	if wish.Start != nil && wish.End != nil && !(availability.Range{Start: *wish.Start, End: *wish.End}).Valid() {
		return availability.Range{}, false, faults.InvalidInput("wished end date is before wished start date")
	}
	start := now
	if wish.Start != nil {
		start = *wish.Start
	}
	checkoutNow := !availability.Day(start).After(availability.Day(now))
	if checkoutNow {
		start = now
	}
	end := start.AddDate(0, 0, m.maxDays)
	if wish.End != nil {
		end = *wish.End
	}
	if availability.Day(end).Before(availability.Day(now)) {
		return availability.Range{}, false, faults.InvalidInput("wished end date is in the past")
	}
	return availability.Range{Start: start, End: end}, checkoutNow, nil
}

// Checkout hands out the copy of an open reservation. A loan taken before
// its reserved start runs from now, so the copy must be free until then.
func (m *Manager) Checkout(ctx context.Context, isbn, accountID string) (models.Reservation, error) {
	now := m.now()
	var r models.Reservation
	err := m.repo.WithinTx(ctx, func(tx store.Repository) error {
		if _, err := tx.LockCopiesByBook(ctx, isbn); err != nil {
			return err
		}
		var err error
		if r, err = openReservationFor(ctx, tx, accountID, isbn); err != nil {
			return err
		}
		if r.Availability == models.OnLoan {
			return faults.ReservationConflict(fmt.Sprintf("reservation %s is already checked out", r.ID))
		}
		if r.StartDate.After(now) {
			r.StartDate = now
		}

		others, err := tx.FindReservationsByCopy(ctx, r.CopyCode)
		if err != nil {
			return err
		}
		loan := availability.Range{Start: r.StartDate, End: r.EndDate}
		for _, other := range others {
			if other.ID == r.ID || !other.Open() {
				continue
			}
			if occupied(other, now).Overlaps(loan) {
				return faults.ReservationConflict(fmt.Sprintf("copy %s is held by another reservation during the loan", r.CopyCode))
			}
		}

		r.Availability = models.OnLoan
		if err := tx.SaveReservation(ctx, &r); err != nil {
			return err
		}
		return syncCopy(ctx, tx, r.CopyCode)
	})
	return r, err
}

// Returned is the outcome of a return: the closed reservation and the fine
// it produced, if any.
type Returned struct {
	Reservation models.Reservation
	Fine        *models.Fine
}

// Return closes an on-loan reservation and frees its copy. The fine check
// runs after the commit; its error is returned alongside the committed
// return.
func (m *Manager) Return(ctx context.Context, isbn, accountID string, returnDate *time.Time) (Returned, error) {
	now := m.now()
	var r models.Reservation
	err := m.repo.WithinTx(ctx, func(tx store.Repository) error {
		if _, err := tx.LockCopiesByBook(ctx, isbn); err != nil {
			return err
		}
		var err error
		if r, err = openReservationFor(ctx, tx, accountID, isbn); err != nil {
			return err
		}
		if r.Availability != models.OnLoan {
			return faults.ReservationConflict(fmt.Sprintf("reservation %s was never checked out", r.ID))
		}

		end := now
		if returnDate != nil {
			end = *returnDate
		}
		if availability.Day(end).Before(availability.Day(r.StartDate)) {
			return faults.InvalidInput("return date is before the loan started")
		}
		r.EndDate = end
		r.ReturnedAt = &now
		r.Availability = models.Available
		if err := tx.SaveReservation(ctx, &r); err != nil {
			return err
		}
		return syncCopy(ctx, tx, r.CopyCode)
	})
	if err != nil {
		return Returned{}, err
	}

	fine, err := m.fines.MaybeCreateFine(ctx, r)
	return Returned{Reservation: r, Fine: fine}, err
}

// Cancel drops a reservation that has not been checked out.
func (m *Manager) Cancel(ctx context.Context, isbn, accountID string) (models.Reservation, error) {
	var r models.Reservation
	err := m.repo.WithinTx(ctx, func(tx store.Repository) error {
		if _, err := tx.LockCopiesByBook(ctx, isbn); err != nil {
			return err
		}
		var err error
		if r, err = openReservationFor(ctx, tx, accountID, isbn); err != nil {
			return err
		}
		if r.Availability == models.OnLoan {
			return faults.ReservationConflict(fmt.Sprintf("reservation %s is on loan, return it instead", r.ID))
		}
		if err := tx.DeleteReservation(ctx, &r); err != nil {
			return err
		}
		return syncCopy(ctx, tx, r.CopyCode)
	})
	return r, err
}

// DeleteCopy removes a copy that has never been reserved.
func (m *Manager) DeleteCopy(ctx context.Context, isbn, code string) error {
	return m.repo.WithinTx(ctx, func(tx store.Repository) error {
		c, err := tx.FindCopyByID(ctx, code)
		if errors.Is(err, store.ErrNotFound) || (err == nil && c.BookISBN != isbn) {
			return faults.Newf(faults.KindBookNotFound, "copy %s of book %s not found", code, isbn)
		}
		if err != nil {
			return err
		}
		history, err := tx.FindReservationsByCopy(ctx, code)
		if err != nil {
			return err
		}
		if len(history) > 0 {
			return faults.BookConflict(fmt.Sprintf("copy %s has %d reservations", code, len(history)))
		}
		return tx.DeleteCopy(ctx, &c)
	})
}

// candidates pairs every copy with the windows its open reservations keep
// busy.
func (m *Manager) candidates(ctx context.Context, tx store.Repository, copies []models.Copy, now time.Time) ([]availability.Candidate, error) {
	out := make([]availability.Candidate, 0, len(copies))
	for _, c := range copies {
		reservations, err := tx.FindReservationsByCopy(ctx, c.Code)
		if err != nil {
			return nil, err
		}
		cand := availability.Candidate{Code: c.Code}
		for _, r := range reservations {
			if r.Open() {
				cand.Reservations = append(cand.Reservations, occupied(r, now))
			}
		}
		out = append(out, cand)
	}
	return out, nil
}

// occupied is the window an open reservation keeps its copy busy. A loan
// covers today whatever its stored dates say.
func occupied(r models.Reservation, now time.Time) availability.Range {
	window := availability.Range{Start: r.StartDate, End: r.EndDate}
	if r.Availability != models.OnLoan {
		return window
	}
	if window.Start.After(now) {
		window.Start = now
	}
	if window.End.Before(now) {
		window.End = now
	}
	return window
}

func openReservationFor(ctx context.Context, tx store.Repository, accountID, isbn string) (models.Reservation, error) {
	reservations, err := tx.FindReservationsByAccount(ctx, accountID)
	if err != nil {
		return models.Reservation{}, err
	}
	for _, r := range reservations {
		if r.Open() && r.BookISBN == isbn {
			return r, nil
		}
	}
	return models.Reservation{}, faults.ReservationNotFound(
		fmt.Sprintf("account %s holds no reservation for book %s", accountID, isbn))
}

// deriveAvailability computes a copy's state from its reservations.
func deriveAvailability(reservations []models.Reservation) models.Availability {
	state := models.Available
	for _, r := range reservations {
		if !r.Open() {
			continue
		}
		if r.Availability == models.OnLoan {
			return models.OnLoan
		}
		state = models.Reserved
	}
	return state
}

func syncCopy(ctx context.Context, tx store.Repository, code string) error {
	c, err := tx.FindCopyByID(ctx, code)
	if err != nil {
		return err
	}
	reservations, err := tx.FindReservationsByCopy(ctx, code)
	if err != nil {
		return err
	}
	state := deriveAvailability(reservations)
	if c.Availability == state {
		return nil
	}
	c.Availability = state
	return tx.SaveCopy(ctx, &c)
}
