package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"library_management/pkg/auth"
	"library_management/pkg/models"
	"library_management/pkg/store"
)

const (
	seedAuthorID    = "5b0b6d2e-9d43-4a2f-9c44-6f3c2b1f8a11"
	seedISBN        = "AAA_123"
	seedLibrarianID = "0f8e6a4c-3b1d-4c8e-a5f2-7d9b1e2c4a60"
)

// seedTestData makes sure a demo author, book, copies and librarian exist.
func seedTestData(ctx context.Context, repo store.Repository, logger *slog.Logger) error {
	if _, err := repo.FindAuthorByID(ctx, seedAuthorID); errors.Is(err, store.ErrNotFound) {
		author := models.Author{ID: seedAuthorID, FirstName: "Ursula", LastName: "Le Guin"}
		if err := repo.CreateAuthor(ctx, &author); err != nil {
			return fmt.Errorf("seed author: %w", err)
		}
		logger.Info("Created test author", "name", author.FirstName+" "+author.LastName)
	} else if err != nil {
		return fmt.Errorf("seed author: %w", err)
	}

	if _, err := repo.FindBookByID(ctx, seedISBN); errors.Is(err, store.ErrNotFound) {
		book := models.Book{
			ISBN:            seedISBN,
			Title:           "The Dispossessed",
			SubjectCategory: "Science Fiction",
			RackNumber:      "R-12",
			PublicationDate: time.Date(1974, time.May, 1, 0, 0, 0, 0, time.UTC),
			AuthorID:        seedAuthorID,
		}
		if err := repo.CreateBook(ctx, &book); err != nil {
			return fmt.Errorf("seed book: %w", err)
		}
		logger.Info("Created test book", "isbn", book.ISBN, "title", book.Title)
	} else if err != nil {
		return fmt.Errorf("seed book: %w", err)
	}

	for _, code := range []string{"XXX", "YYY"} {
		if _, err := repo.FindCopyByID(ctx, code); errors.Is(err, store.ErrNotFound) {
			c := models.Copy{Code: code, BookISBN: seedISBN, Price: decimal.RequireFromString("15.00"), Availability: models.Available}
			if err := repo.CreateCopy(ctx, &c); err != nil {
				return fmt.Errorf("seed item %s: %w", code, err)
			}
			logger.Info("Created test item", "code", code)
		} else if err != nil {
			return fmt.Errorf("seed item %s: %w", code, err)
		}
	}

	if _, err := repo.FindAccountByID(ctx, seedLibrarianID); errors.Is(err, store.ErrNotFound) {
		hash, err := auth.HashPassword("librarian")
		if err != nil {
			return err
		}
		librarian := models.Account{
			ID:           seedLibrarianID,
			Username:     "librarian",
			PasswordHash: hash,
			FirstName:    "Head",
			LastName:     "Librarian",
			Kind:         models.KindLibrarian,
		}
		if err := repo.CreateAccount(ctx, &librarian); err != nil {
			return fmt.Errorf("seed librarian: %w", err)
		}
		logger.Info("Created test librarian", "username", librarian.Username)
	} else if err != nil {
		return fmt.Errorf("seed librarian: %w", err)
	}
	return nil
}
