// Package accounts manages member and librarian accounts and signs them in.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"library_management/pkg/auth"
	"library_management/pkg/faults"
	"library_management/pkg/models"
	"library_management/pkg/store"
)

// View is the outward shape of an account. Active is only present for members.
type View struct {
	ID        string             `json:"id"`
	Username  string             `json:"username"`
	FirstName string             `json:"firstName"`
	LastName  string             `json:"lastName"`
	Type      models.AccountKind `json:"type"`
	Active    *bool              `json:"active,omitempty"`
}

func ToView(a models.Account) View {
	v := View{ID: a.ID, Username: a.Username, FirstName: a.FirstName, LastName: a.LastName, Type: a.Kind}
	switch a.Kind {
	case models.KindMember:
		active := a.Active == nil || *a.Active
		v.Active = &active
	case models.KindLibrarian:
	default:
		panic(fmt.Sprintf("unknown account kind %q", a.Kind))
	}
	return v
}

type RegisterInput struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
	Kind      models.AccountKind
}

type Session struct {
	Token     string             `json:"token"`
	AccountID string             `json:"accountId"`
	Role      models.AccountKind `json:"role"`
}

type Service struct {
	repo   store.AccountStore
	issuer *auth.Issuer
	log    *slog.Logger
}

func NewService(repo store.AccountStore, issuer *auth.Issuer, log *slog.Logger) *Service {
	return &Service{repo: repo, issuer: issuer, log: log}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (View, error) {
	if in.Kind == "" {
		in.Kind = models.KindMember
	}
	if in.Kind != models.KindMember && in.Kind != models.KindLibrarian {
		return View{}, faults.InvalidInput(fmt.Sprintf("unknown account type %q", in.Kind))
	}
	if _, err := s.repo.FindAccountByUsername(ctx, in.Username); err == nil {
		return View{}, faults.Newf(faults.KindAccountConflict, "username %s is taken", in.Username)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return View{}, internal(err)
	}
	account := models.Account{
		ID:           uuid.New().String(),
		Username:     in.Username,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Kind:         in.Kind,
	}
	if in.Kind == models.KindMember {
		active := true
		account.Active = &active
	}

	err = s.repo.CreateAccount(ctx, &account)
	if errors.Is(err, store.ErrDuplicate) {
		return View{}, faults.Newf(faults.KindAccountConflict, "username %s is taken", in.Username)
	}
	if err != nil {
		return View{}, internal(err)
	}
	s.log.Info("Account registered", "account_id", account.ID, "type", account.Kind)
	return ToView(account), nil
}

func (s *Service) Get(ctx context.Context, id string) (View, error) {
	account, err := s.find(ctx, id)
	if err != nil {
		return View{}, err
	}
	return ToView(account), nil
}

func (s *Service) GetByUsername(ctx context.Context, username string) (View, error) {
	account, err := s.repo.FindAccountByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return View{}, faults.Newf(faults.KindAccountNotFound, "account %s not found", username)
	}
	if err != nil {
		return View{}, internal(err)
	}
	return ToView(account), nil
}

// ToggleStatus activates or deactivates a member. Librarians have no status.
func (s *Service) ToggleStatus(ctx context.Context, id string) (View, error) {
	account, err := s.find(ctx, id)
	if err != nil {
		return View{}, err
	}
	if account.Kind != models.KindMember {
		return View{}, faults.Newf(faults.KindAccountConflict, "account %s is not a member", id)
	}

	active := account.Active != nil && !*account.Active
	account.Active = &active
	if err := s.repo.SaveAccount(ctx, &account); err != nil {
		return View{}, internal(err)
	}
	s.log.Info("Account status changed", "account_id", id, "active", active)
	return ToView(account), nil
}

// ChangeRole swaps an account between member and librarian.
func (s *Service) ChangeRole(ctx context.Context, id string) (View, error) {
	account, err := s.find(ctx, id)
	if err != nil {
		return View{}, err
	}

	switch account.Kind {
	case models.KindMember:
		account.Kind = models.KindLibrarian
		account.Active = nil
	case models.KindLibrarian:
		active := true
		account.Kind = models.KindMember
		account.Active = &active
	}
	if err := s.repo.SaveAccount(ctx, &account); err != nil {
		return View{}, internal(err)
	}
	s.log.Info("Account role changed", "account_id", id, "type", account.Kind)
	return ToView(account), nil
}

func (s *Service) SignIn(ctx context.Context, username, password string) (Session, error) {
	account, err := s.repo.FindAccountByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, faults.New(faults.KindUnauthorized, "bad credentials")
	}
	if err != nil {
		return Session{}, internal(err)
	}

	ok, err := auth.CheckPassword(account.PasswordHash, password)
	if err != nil {
		return Session{}, internal(err)
	}
	if !ok {
		s.log.Warn("Sign in rejected", "username", username)
		return Session{}, faults.New(faults.KindUnauthorized, "bad credentials")
	}
	if account.Kind == models.KindMember && account.Active != nil && !*account.Active {
		return Session{}, faults.Newf(faults.KindForbidden, "account %s is inactive", username)
	}

	token, err := s.issuer.Issue(account.ID, account.Kind)
	if err != nil {
		return Session{}, internal(err)
	}
	return Session{Token: token, AccountID: account.ID, Role: account.Kind}, nil
}

func (s *Service) find(ctx context.Context, id string) (models.Account, error) {
	account, err := s.repo.FindAccountByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Account{}, faults.AccountNotFound(id)
	}
	if err != nil {
		return models.Account{}, internal(err)
	}
	return account, nil
}

func internal(err error) error {
	return faults.New(faults.KindInternal, "internal error").WithCause(err)
}
