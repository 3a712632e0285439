// Package lending implements the book lending core: reservations, checkouts,
// returns and cancellations of copies, fines for late returns, and the
// catalog operations the lending routes need.
//
// Service is the entry point. It checks that the book and account exist,
// hands the work to Manager and FineCalculator, and reports failures as
// faults.Error values.
package lending

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"library_management/pkg/availability"
	"library_management/pkg/config"
	"library_management/pkg/faults"
	"library_management/pkg/models"
	"library_management/pkg/notification"
	"library_management/pkg/store"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

type Notifier interface {
	Publish(ctx context.Context, ev notification.Event)
}

type noopNotifier struct{}

func (noopNotifier) Publish(context.Context, notification.Event) {}

type Service struct {
	repo     store.Repository
	manager  *Manager
	notifier Notifier
	log      *slog.Logger
}

func NewService(repo store.Repository, cfg config.LendingConfig, notifier Notifier, log *slog.Logger) *Service {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	fines := NewFineCalculator(repo, cfg.MaxReservationDays, cfg.FinePrice)
	return &Service{
		repo:     repo,
		manager:  NewManager(repo, fines, cfg.MaxReservationDays),
		notifier: notifier,
		log:      log,
	}
}

// BookDetails is a book with the codes of its copies.
type BookDetails struct {
	Book   models.Book
	Copies []models.Copy
}

type BookPage struct {
	Books []models.Book
	Total int64
	Page  int
	Size  int
}

type AvailableCopies struct {
	ISBN  string
	Count int
	Codes []string
}

type BookInput struct {
	ISBN            string
	Title           string
	SubjectCategory string
	RackNumber      string
	PublicationDate time.Time
	AuthorID        string
}

func (s *Service) Reserve(ctx context.Context, isbn, accountID string, wish Window) (models.Reservation, error) {
	if err := s.resolve(ctx, isbn, accountID); err != nil {
		return models.Reservation{}, err
	}
	r, err := s.manager.Reserve(ctx, isbn, accountID, wish)
	if err != nil {
		return r, s.fail("reserve", isbn, accountID, err)
	}

	s.log.Info("Book reserved", "isbn", isbn, "account_id", accountID, "item", r.CopyCode, "state", r.Availability)
	ev := notification.EventReserved
	if r.Availability == models.OnLoan {
		ev = notification.EventCheckedOut
	}
	s.publish(ctx, ev, r, fmt.Sprintf("Book %s item %s %s from %s to %s", isbn, r.CopyCode,
		r.Availability, r.StartDate.Format(time.DateOnly), r.EndDate.Format(time.DateOnly)))
	return r, nil
}

func (s *Service) Checkout(ctx context.Context, isbn, accountID string) (models.Reservation, error) {
	if err := s.resolve(ctx, isbn, accountID); err != nil {
		return models.Reservation{}, err
	}
	r, err := s.manager.Checkout(ctx, isbn, accountID)
	if err != nil {
		return r, s.fail("checkout", isbn, accountID, err)
	}

	s.log.Info("Book checked out", "isbn", isbn, "account_id", accountID, "item", r.CopyCode)
	s.publish(ctx, notification.EventCheckedOut, r, fmt.Sprintf("Book %s item %s checked out", isbn, r.CopyCode))
	return r, nil
}

// Return closes the account's loan of the book. When the fine check fails
// the return stays committed and the fine error is returned.
func (s *Service) Return(ctx context.Context, isbn, accountID string, returnDate *time.Time) (Returned, error) {
	if err := s.resolve(ctx, isbn, accountID); err != nil {
		return Returned{}, err
	}
	res, err := s.manager.Return(ctx, isbn, accountID, returnDate)
	if res.Reservation.ID == "" {
		return res, s.fail("return", isbn, accountID, err)
	}

	s.log.Info("Book returned", "isbn", isbn, "account_id", accountID, "item", res.Reservation.CopyCode)
	s.publish(ctx, notification.EventReturned, res.Reservation, fmt.Sprintf("Book %s item %s returned", isbn, res.Reservation.CopyCode))

	if err != nil {
		s.log.Error("Fine check failed after return", "isbn", isbn, "account_id", accountID,
			"reservation_id", res.Reservation.ID, "error", err)
		return res, s.mapErr(err)
	}
	if res.Fine != nil {
		s.log.Info("Fine created", "account_id", accountID, "fine_id", res.Fine.ID, "price", res.Fine.Price.StringFixed(2))
		s.publish(ctx, notification.EventFineCreated, res.Reservation,
			fmt.Sprintf("Late return of book %s, fine of %s", isbn, res.Fine.Price.StringFixed(2)))
	}
	return res, nil
}

func (s *Service) Cancel(ctx context.Context, isbn, accountID string) error {
	if err := s.resolve(ctx, isbn, accountID); err != nil {
		return err
	}
	r, err := s.manager.Cancel(ctx, isbn, accountID)
	if err != nil {
		return s.fail("cancel", isbn, accountID, err)
	}

	s.log.Info("Reservation cancelled", "isbn", isbn, "account_id", accountID, "item", r.CopyCode)
	s.publish(ctx, notification.EventCancelled, r, fmt.Sprintf("Reservation of book %s cancelled", isbn))
	return nil
}

func (s *Service) DeleteCopy(ctx context.Context, isbn, code string) error {
	if _, err := s.findBook(ctx, isbn); err != nil {
		return err
	}
	if err := s.manager.DeleteCopy(ctx, isbn, code); err != nil {
		s.log.Warn("Delete item rejected", "isbn", isbn, "item", code, "error", err)
		return s.mapErr(err)
	}
	s.log.Info("Item deleted", "isbn", isbn, "item", code)
	return nil
}

func (s *Service) AddCopy(ctx context.Context, isbn, code string, price decimal.Decimal) (models.Copy, error) {
	if _, err := s.findBook(ctx, isbn); err != nil {
		return models.Copy{}, err
	}
	if price.IsNegative() {
		return models.Copy{}, faults.InvalidInput("item price must not be negative")
	}
	c := models.Copy{Code: code, BookISBN: isbn, Price: price, Availability: models.Available}
	err := s.repo.CreateCopy(ctx, &c)
	if errors.Is(err, store.ErrDuplicate) {
		return models.Copy{}, faults.BookConflict(fmt.Sprintf("item %s already exists", code))
	}
	if err != nil {
		return models.Copy{}, s.mapErr(err)
	}
	s.log.Info("Item added", "isbn", isbn, "item", code)
	return c, nil
}

func (s *Service) GetBook(ctx context.Context, isbn string) (BookDetails, error) {
	book, err := s.findBook(ctx, isbn)
	if err != nil {
		return BookDetails{}, err
	}
	copies, err := s.repo.FindCopiesByBook(ctx, isbn)
	if err != nil {
		return BookDetails{}, s.mapErr(err)
	}
	return BookDetails{Book: book, Copies: copies}, nil
}

// ListBooks pages through the catalog; page is 1-based.
func (s *Service) ListBooks(ctx context.Context, filter store.BookFilter, page, size int) (BookPage, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		return BookPage{}, faults.InvalidInput(fmt.Sprintf("page size must be at most %d", MaxPageSize))
	}
	books, total, err := s.repo.ListBooks(ctx, filter, (page-1)*size, size)
	if err != nil {
		return BookPage{}, s.mapErr(err)
	}
	return BookPage{Books: books, Total: total, Page: page, Size: size}, nil
}

func (s *Service) CreateBook(ctx context.Context, in BookInput) (models.Book, error) {
	if _, err := s.repo.FindAuthorByID(ctx, in.AuthorID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Book{}, faults.Newf(faults.KindAuthorNotFound, "author %s not found", in.AuthorID)
		}
		return models.Book{}, s.mapErr(err)
	}
	if _, err := s.repo.FindBookByID(ctx, in.ISBN); err == nil {
		return models.Book{}, faults.BookConflict(fmt.Sprintf("book %s already exists", in.ISBN))
	}
	if _, err := s.repo.FindBookByTitle(ctx, in.Title); err == nil {
		return models.Book{}, faults.BookConflict(fmt.Sprintf("a book titled %q already exists", in.Title))
	}

	book := models.Book{
		ISBN:            in.ISBN,
		Title:           in.Title,
		SubjectCategory: in.SubjectCategory,
		RackNumber:      in.RackNumber,
		PublicationDate: in.PublicationDate,
		AuthorID:        in.AuthorID,
	}
	err := s.repo.CreateBook(ctx, &book)
	if errors.Is(err, store.ErrDuplicate) {
		return models.Book{}, faults.BookConflict(fmt.Sprintf("book %s already exists", in.ISBN))
	}
	if err != nil {
		return models.Book{}, s.mapErr(err)
	}
	s.log.Info("Book created", "isbn", book.ISBN, "title", book.Title)
	return s.findBook(ctx, book.ISBN)
}

func (s *Service) DeleteBook(ctx context.Context, isbn string) error {
	book, err := s.findBook(ctx, isbn)
	if err != nil {
		return err
	}
	copies, err := s.repo.FindCopiesByBook(ctx, isbn)
	if err != nil {
		return s.mapErr(err)
	}
	if len(copies) > 0 {
		return faults.BookConflict(fmt.Sprintf("book %s still has %d items", isbn, len(copies)))
	}
	if err := s.repo.DeleteBook(ctx, &book); err != nil {
		return s.mapErr(err)
	}
	s.log.Info("Book deleted", "isbn", isbn)
	return nil
}

func (s *Service) CreateAuthor(ctx context.Context, firstName, lastName string) (models.Author, error) {
	author := models.Author{ID: uuid.New().String(), FirstName: firstName, LastName: lastName}
	if err := s.repo.CreateAuthor(ctx, &author); err != nil {
		return models.Author{}, s.mapErr(err)
	}
	return author, nil
}

// AvailableCopies counts the copies of a book with no open reservation.
func (s *Service) AvailableCopies(ctx context.Context, isbn string) (AvailableCopies, error) {
	if _, err := s.findBook(ctx, isbn); err != nil {
		return AvailableCopies{}, err
	}
	copies, err := s.repo.FindCopiesByBook(ctx, isbn)
	if err != nil {
		return AvailableCopies{}, s.mapErr(err)
	}

	out := AvailableCopies{ISBN: isbn, Codes: []string{}}
	for _, c := range copies {
		reservations, err := s.repo.FindReservationsByCopy(ctx, c.Code)
		if err != nil {
			return AvailableCopies{}, s.mapErr(err)
		}
		cand := availability.Candidate{Code: c.Code}
		for _, r := range reservations {
			if r.Open() {
				cand.Reservations = append(cand.Reservations, availability.Range{Start: r.StartDate, End: r.EndDate})
			}
		}
		if availability.CountFree([]availability.Candidate{cand}) == 1 {
			out.Codes = append(out.Codes, c.Code)
		}
	}
	out.Count = len(out.Codes)
	return out, nil
}

// AccountsByBook lists the accounts that currently have a copy of the book on loan.
func (s *Service) AccountsByBook(ctx context.Context, isbn string) ([]models.Account, error) {
	if _, err := s.findBook(ctx, isbn); err != nil {
		return nil, err
	}
	copies, err := s.repo.FindCopiesByBook(ctx, isbn)
	if err != nil {
		return nil, s.mapErr(err)
	}
	codes := make([]string, 0, len(copies))
	for _, c := range copies {
		if c.Availability == models.OnLoan {
			codes = append(codes, c.Code)
		}
	}
	accounts, err := s.repo.FindOwnersByCopyIDs(ctx, codes)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return accounts, nil
}

// BooksByAccount lists the books the account holds an open reservation for.
func (s *Service) BooksByAccount(ctx context.Context, accountID string) ([]models.Book, error) {
	if _, err := s.findAccount(ctx, accountID); err != nil {
		return nil, err
	}
	reservations, err := s.repo.FindReservationsByAccount(ctx, accountID)
	if err != nil {
		return nil, s.mapErr(err)
	}

	books := []models.Book{}
	seen := map[string]bool{}
	for _, r := range reservations {
		if !r.Open() || seen[r.BookISBN] {
			continue
		}
		seen[r.BookISBN] = true
		book, err := s.repo.FindBookByID(ctx, r.BookISBN)
		if err != nil {
			return nil, s.mapErr(err)
		}
		books = append(books, book)
	}
	return books, nil
}

func (s *Service) FinesByAccount(ctx context.Context, accountID string) ([]models.Fine, error) {
	if _, err := s.findAccount(ctx, accountID); err != nil {
		return nil, err
	}
	fines, err := s.repo.FindFinesByAccount(ctx, accountID)
	if err != nil {
		return nil, s.mapErr(err)
	}
	return fines, nil
}

func (s *Service) resolve(ctx context.Context, isbn, accountID string) error {
	if _, err := s.findBook(ctx, isbn); err != nil {
		return err
	}
	account, err := s.findAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Kind == models.KindMember && account.Active != nil && !*account.Active {
		return faults.Newf(faults.KindForbidden, "account %s is inactive", accountID)
	}
	return nil
}

func (s *Service) findBook(ctx context.Context, isbn string) (models.Book, error) {
	book, err := s.repo.FindBookByID(ctx, isbn)
	if errors.Is(err, store.ErrNotFound) {
		return models.Book{}, faults.BookNotFound(isbn)
	}
	if err != nil {
		return models.Book{}, s.mapErr(err)
	}
	return book, nil
}

func (s *Service) findAccount(ctx context.Context, id string) (models.Account, error) {
	account, err := s.repo.FindAccountByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Account{}, faults.AccountNotFound(id)
	}
	if err != nil {
		return models.Account{}, s.mapErr(err)
	}
	return account, nil
}

func (s *Service) fail(op, isbn, accountID string, err error) error {
	s.log.Warn("Lending operation rejected", "op", op, "isbn", isbn, "account_id", accountID, "error", err)
	return s.mapErr(err)
}

// mapErr keeps faults as they are and turns anything else into an internal fault.
func (s *Service) mapErr(err error) error {
	var fe *faults.Error
	if errors.As(err, &fe) {
		return err
	}
	return faults.New(faults.KindInternal, "internal error").WithCause(err)
}

func (s *Service) publish(ctx context.Context, t notification.EventType, r models.Reservation, msg string) {
	s.notifier.Publish(ctx, notification.Event{
		ID:        uuid.New().String(),
		Type:      t,
		AccountID: r.AccountID,
		ISBN:      r.BookISBN,
		ItemCode:  r.CopyCode,
		Message:   msg,
		CreatedAt: time.Now(),
	})
}
