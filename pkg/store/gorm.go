package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"library_management/pkg/models"
)

type Store struct {
	db *gorm.DB
}

var _ Repository = (*Store)(nil)

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func (s *Store) FindAccountByID(ctx context.Context, id string) (models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	return account, translate(err, "find account")
}

func (s *Store) FindAccountByUsername(ctx context.Context, username string) (models.Account, error) {
	var account models.Account
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&account).Error
	return account, translate(err, "find account by username")
}

func (s *Store) CreateAccount(ctx context.Context, account *models.Account) error {
	return translate(s.db.WithContext(ctx).Create(account).Error, "create account")
}

func (s *Store) SaveAccount(ctx context.Context, account *models.Account) error {
	return translate(s.db.WithContext(ctx).Save(account).Error, "save account")
}

func (s *Store) FindAuthorByID(ctx context.Context, id string) (models.Author, error) {
	var author models.Author
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&author).Error
	return author, translate(err, "find author")
}

func (s *Store) CreateAuthor(ctx context.Context, author *models.Author) error {
	return translate(s.db.WithContext(ctx).Create(author).Error, "create author")
}

func (s *Store) FindBookByID(ctx context.Context, isbn string) (models.Book, error) {
	var book models.Book
	err := s.db.WithContext(ctx).Preload("Author").Where("isbn = ?", isbn).First(&book).Error
	return book, translate(err, "find book")
}

func (s *Store) FindBookByTitle(ctx context.Context, title string) (models.Book, error) {
	var book models.Book
	err := s.db.WithContext(ctx).Where("title = ?", title).First(&book).Error
	return book, translate(err, "find book by title")
}

func (f BookFilter) scope(db *gorm.DB) *gorm.DB {
	if f.Title != "" {
		db = db.Where("books.title = ?", f.Title)
	}
	if f.Category != "" {
		db = db.Where("books.subject_category = ?", f.Category)
	}
	if f.PublishedFrom != nil {
		db = db.Where("books.publication_date >= ?", *f.PublishedFrom)
	}
	if f.AuthorLastName != "" {
		db = db.Joins("JOIN authors ON authors.id = books.author_id").
			Where("authors.last_name = ?", f.AuthorLastName)
	}
	return db
}

func (s *Store) ListBooks(ctx context.Context, filter BookFilter, offset, limit int) ([]models.Book, int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&models.Book{}).Scopes(filter.scope).Count(&total).Error
	if err != nil {
		return nil, 0, translate(err, "count books")
	}

	var books []models.Book
	err = s.db.WithContext(ctx).Scopes(filter.scope).
		Preload("Author").
		Order("books.isbn").
		Offset(offset).Limit(limit).
		Find(&books).Error
	if err != nil {
		return nil, 0, translate(err, "list books")
	}
	return books, total, nil
}

func (s *Store) CreateBook(ctx context.Context, book *models.Book) error {
	return translate(s.db.WithContext(ctx).Omit(clause.Associations).Create(book).Error, "create book")
}

func (s *Store) DeleteBook(ctx context.Context, book *models.Book) error {
	return translate(s.db.WithContext(ctx).Delete(book).Error, "delete book")
}

func (s *Store) FindCopiesByBook(ctx context.Context, isbn string) ([]models.Copy, error) {
	var copies []models.Copy
	err := s.db.WithContext(ctx).Where("book_isbn = ?", isbn).Order("code").Find(&copies).Error
	return copies, translate(err, "find copies")
}

func (s *Store) LockCopiesByBook(ctx context.Context, isbn string) ([]models.Copy, error) {
	q := s.db.WithContext(ctx).Where("book_isbn = ?", isbn).Order("code")
	// SQLite has no row locks; its writer lock already serialises transactions.
	if s.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var copies []models.Copy
	err := q.Find(&copies).Error
	return copies, translate(err, "lock copies")
}

func (s *Store) FindCopyByID(ctx context.Context, code string) (models.Copy, error) {
	var c models.Copy
	err := s.db.WithContext(ctx).Where("code = ?", code).First(&c).Error
	return c, translate(err, "find copy")
}

func (s *Store) CreateCopy(ctx context.Context, c *models.Copy) error {
	return translate(s.db.WithContext(ctx).Create(c).Error, "create copy")
}

func (s *Store) SaveCopy(ctx context.Context, c *models.Copy) error {
	return translate(s.db.WithContext(ctx).Save(c).Error, "save copy")
}

func (s *Store) DeleteCopy(ctx context.Context, c *models.Copy) error {
	return translate(s.db.WithContext(ctx).Delete(c).Error, "delete copy")
}

func (s *Store) FindReservationsByAccount(ctx context.Context, accountID string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("start_date, id").Find(&reservations).Error
	return reservations, translate(err, "find reservations by account")
}

func (s *Store) FindReservationsByCopy(ctx context.Context, code string) ([]models.Reservation, error) {
	var reservations []models.Reservation
	err := s.db.WithContext(ctx).Where("copy_code = ?", code).Order("start_date, id").Find(&reservations).Error
	return reservations, translate(err, "find reservations by copy")
}

func (s *Store) FindOwnersByCopyIDs(ctx context.Context, codes []string) ([]models.Account, error) {
	if len(codes) == 0 {
		return []models.Account{}, nil
	}
	holders := s.db.Model(&models.Reservation{}).
		Select("account_id").
		Where("copy_code IN ? AND returned_at IS NULL AND availability = ?", codes, models.OnLoan)

	var accounts []models.Account
	err := s.db.WithContext(ctx).Where("id IN (?)", holders).Order("username").Find(&accounts).Error
	return accounts, translate(err, "find copy owners")
}

// SaveReservation inserts a reservation that was never stored and updates it otherwise.
func (s *Store) SaveReservation(ctx context.Context, r *models.Reservation) error {
	if r.CreatedAt.IsZero() {
		return translate(s.db.WithContext(ctx).Create(r).Error, "create reservation")
	}
	return translate(s.db.WithContext(ctx).Save(r).Error, "save reservation")
}

func (s *Store) DeleteReservation(ctx context.Context, r *models.Reservation) error {
	return translate(s.db.WithContext(ctx).Delete(r).Error, "delete reservation")
}

func (s *Store) SaveFine(ctx context.Context, f *models.Fine) error {
	if f.CreatedAt.IsZero() {
		return translate(s.db.WithContext(ctx).Create(f).Error, "create fine")
	}
	return translate(s.db.WithContext(ctx).Save(f).Error, "save fine")
}

func (s *Store) FindFinesByAccount(ctx context.Context, accountID string) ([]models.Fine, error) {
	var fines []models.Fine
	err := s.db.WithContext(ctx).Where("account_id = ?", accountID).Order("created_at").Find(&fines).Error
	return fines, translate(err, "find fines")
}
