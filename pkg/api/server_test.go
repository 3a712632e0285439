package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"library_management/pkg/accounts"
	"library_management/pkg/auth"
	"library_management/pkg/config"
	"library_management/pkg/database"
	"library_management/pkg/lending"
	"library_management/pkg/logging"
	"library_management/pkg/models"
	"library_management/pkg/notification"
	"library_management/pkg/ratelimit"
	"library_management/pkg/store"
)

type fakeNotifications struct {
	err error
}

func (f fakeNotifications) ByAccount(_ context.Context, accountID string) ([]notification.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []notification.Event{{ID: "n1", Type: notification.EventReserved, AccountID: accountID}}, nil
}

func (f fakeNotifications) Ping(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "pong", nil
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to connect test database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

type testEnv struct {
	router    *gin.Engine
	accounts  *accounts.Service
	member    accounts.View
	memberTok string
	libTok    string
}

func setupServer(t *testing.T, notifications NotificationReader) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := setupTestDB(t)
	repo := store.New(db)
	log := logging.Discard()
	issuer := auth.NewIssuer("test-secret", time.Hour)
	accountSvc := accounts.NewService(repo, issuer, log)
	lendingSvc := lending.NewService(repo, config.LendingConfig{
		MaxReservationDays: 10,
		FinePrice:          decimal.RequireFromString("5.00"),
	}, nil, log)

	server := New(Deps{
		Lending:       lendingSvc,
		Accounts:      accountSvc,
		Notifications: notifications,
		Issuer:        issuer,
		SignInLimiter: ratelimit.New(100, 100),
		DB:            db,
		Log:           log,
	})
	router, err := server.Router()
	require.NoError(t, err)

	ctx := context.Background()
	member, err := accountSvc.Register(ctx, accounts.RegisterInput{Username: "alice", Password: "alice-pw"})
	require.NoError(t, err)
	_, err = accountSvc.Register(ctx, accounts.RegisterInput{Username: "librarian", Password: "lib-pw", Kind: models.KindLibrarian})
	require.NoError(t, err)

	env := testEnv{router: router, accounts: accountSvc, member: member}
	env.memberTok = env.signIn(t, "alice", "alice-pw")
	env.libTok = env.signIn(t, "librarian", "lib-pw")
	return env
}

func (e testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e testEnv) signIn(t *testing.T, username, password string) string {
	t.Helper()
	w := e.do(http.MethodPost, basePath+"/signin", "", gin.H{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session accounts.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	return session.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// seedBook creates book AAA_123 with copies XXX and YYY through the API.
func (e testEnv) seedBook(t *testing.T) {
	t.Helper()
	w := e.do(http.MethodPost, basePath+"/api/library/v1/authors", e.libTok, gin.H{"firstName": "Ursula", "lastName": "Le Guin"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	author := decode[authorResponse](t, w)

	w = e.do(http.MethodPost, basePath+"/api/library/v1/books", e.libTok, gin.H{
		"isbn": "AAA_123", "title": "The Dispossessed", "subjectCategory": "Fiction",
		"publicationDate": "1974-05-01", "authorId": author.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	for _, code := range []string{"XXX", "YYY"} {
		w = e.do(http.MethodPost, basePath+"/api/library/v1/books/AAA_123/items", e.libTok, gin.H{"code": code, "price": "15.00"})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
}

func TestHealthCheck(t *testing.T) {
	env := setupServer(t, fakeNotifications{})

	w := env.do(http.MethodGet, "/manage/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "UP", decode[map[string]any](t, w)["status"])
}

func TestSignUpAndSignIn(t *testing.T) {
	env := setupServer(t, fakeNotifications{})

	w := env.do(http.MethodPost, basePath+"/signup", "", gin.H{"username": "bob", "password": "bob-pw"})
	require.Equal(t, http.StatusCreated, w.Code)
	view := decode[accounts.View](t, w)
	assert.Equal(t, models.KindMember, view.Type)

	w = env.do(http.MethodPost, basePath+"/signup", "", gin.H{"username": "bob", "password": "other"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, basePath+"/signup", "", gin.H{"username": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, basePath+"/signin", "", gin.H{"username": "bob", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[map[string]any](t, w)["code"])
}

func TestLibraryRoutesRequireToken(t *testing.T) {
	env := setupServer(t, fakeNotifications{})

	w := env.do(http.MethodGet, basePath+"/api/library/v1/books", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(http.MethodPost, basePath+"/api/library/v1/authors", env.memberTok, gin.H{"lastName": "Herbert"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCatalogRoutes(t *testing.T) {
	env := setupServer(t, fakeNotifications{})
	env.seedBook(t)

	w := env.do(http.MethodGet, basePath+"/api/library/v1/books?category=Fiction&publishedFrom=1970-01-01", env.memberTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[map[string]any](t, w)
	assert.Equal(t, float64(1), page["totalElements"])

	w = env.do(http.MethodGet, basePath+"/api/library/v1/books?publishedFrom=yesterday", env.memberTok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, basePath+"/api/library/v1/books/AAA_123", env.memberTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	book := decode[bookResponse](t, w)
	assert.Equal(t, "Le Guin", book.Author.LastName)
	assert.Equal(t, "1974-05-01", book.PublicationDate)
	require.Len(t, book.Items, 2)
	assert.Equal(t, "15.00", book.Items[0].Price)

	w = env.do(http.MethodGet, basePath+"/api/library/v1/books/NOPE", env.memberTok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "BOOK_NOT_FOUND", decode[map[string]any](t, w)["code"])

	w = env.do(http.MethodPost, basePath+"/api/library/v1/books", env.libTok, gin.H{
		"isbn": "not an isbn!", "title": "Broken", "authorId": book.Author.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, basePath+"/api/library/v1/books", env.libTok, gin.H{
		"isbn": "BBB_456", "title": "The Dispossessed", "authorId": book.Author.ID,
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, basePath+"/api/library/v1/books", env.libTok, gin.H{
		"isbn": "BBB_456", "title": "Dune", "authorId": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "AUTHOR_NOT_FOUND", decode[map[string]any](t, w)["code"])

	w = env.do(http.MethodDelete, basePath+"/api/library/v1/books/AAA_123", env.libTok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLendingRoutes(t *testing.T) {
	env := setupServer(t, fakeNotifications{})
	env.seedBook(t)
	lendingPath := basePath + "/api/library/v1/books/AAA_123/account/" + env.member.ID

	w := env.do(http.MethodPost, lendingPath+"/reserve", env.memberTok, nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = env.do(http.MethodPost, lendingPath+"/reserve", env.memberTok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "BOOK_CONFLICT", decode[map[string]any](t, w)["code"])

	w = env.do(http.MethodPost, basePath+"/api/library/v1/books/AAA_123/account/someone-else/reserve", env.memberTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, basePath+"/api/library/v1/books/AAA_123/available-items", env.memberTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["available"])

	w = env.do(http.MethodGet, basePath+"/api/library/v1/books/AAA_123/accounts", env.libTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	holders := decode[[]accounts.View](t, w)
	require.Len(t, holders, 1)
	assert.Equal(t, "alice", holders[0].Username)

	w = env.do(http.MethodDelete, lendingPath+"/reservation", env.memberTok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "RESERVATION_CONFLICT", decode[map[string]any](t, w)["code"])

	w = env.do(http.MethodPost, lendingPath+"/return", env.memberTok, gin.H{"returnDate": "12-03-2024"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	lateReturn := time.Now().UTC().AddDate(0, 0, 12).Format(time.DateOnly)
	w = env.do(http.MethodPost, lendingPath+"/return", env.memberTok, gin.H{"returnDate": lateReturn})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = env.do(http.MethodGet, basePath+"/api/account/v1/accounts/"+env.member.ID+"/fines", env.libTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	fines := decode[[]fineResponse](t, w)
	require.Len(t, fines, 1)
	assert.Equal(t, "5.00", fines[0].Price)
	assert.Equal(t, models.FinePending, fines[0].Status)

	w = env.do(http.MethodPost, lendingPath+"/checkout", env.memberTok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RESERVATION_NOT_FOUND", decode[map[string]any](t, w)["code"])

	w = env.do(http.MethodDelete, basePath+"/api/library/v1/books/AAA_123/items/XXX", env.libTok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = env.do(http.MethodDelete, basePath+"/api/library/v1/books/AAA_123/items/YYY", env.libTok, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestFutureReservationThenCheckout(t *testing.T) {
	env := setupServer(t, fakeNotifications{})
	env.seedBook(t)
	lendingPath := basePath + "/api/library/v1/books/AAA_123/account/" + env.member.ID

	w := env.do(http.MethodPost, lendingPath+"/reserve", env.memberTok, gin.H{"wishedStartDate": "2024-13-01"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	start := time.Now().UTC().AddDate(0, 0, 3).Format(time.DateOnly)
	w = env.do(http.MethodPost, lendingPath+"/reserve", env.memberTok, gin.H{"wishedStartDate": start})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = env.do(http.MethodPost, lendingPath+"/return", env.memberTok, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(http.MethodPost, lendingPath+"/checkout", env.memberTok, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodGet, basePath+"/api/account/v1/accounts/"+env.member.ID+"/books", env.libTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	books := decode[[]bookResponse](t, w)
	require.Len(t, books, 1)
	assert.Equal(t, "AAA_123", books[0].ISBN)
}

func TestAccountRoutes(t *testing.T) {
	env := setupServer(t, fakeNotifications{})
	accountPath := basePath + "/api/account/v1/accounts/"

	w := env.do(http.MethodGet, accountPath+env.member.ID, env.memberTok, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodGet, accountPath+env.member.ID, env.libTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode[accounts.View](t, w).Username)

	w = env.do(http.MethodGet, accountPath+"username/alice", env.libTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, env.member.ID, decode[accounts.View](t, w).ID)

	w = env.do(http.MethodGet, accountPath+"ghost", env.libTok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodPut, accountPath+env.member.ID+"/status", env.libTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[accounts.View](t, w)
	require.NotNil(t, view.Active)
	assert.False(t, *view.Active)

	w = env.do(http.MethodPost, basePath+"/signin", "", gin.H{"username": "alice", "password": "alice-pw"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(http.MethodPost, accountPath+env.member.ID+"/role/change", env.libTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.KindLibrarian, decode[accounts.View](t, w).Type)
}

func TestNotificationRoutes(t *testing.T) {
	env := setupServer(t, fakeNotifications{})

	w := env.do(http.MethodGet, basePath+"/api/notification/v1/notifications/ping", env.libTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = env.do(http.MethodGet, basePath+"/api/notification/v1/notifications/accounts/"+env.member.ID, env.libTok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	events := decode[[]notification.Event](t, w)
	require.Len(t, events, 1)
	assert.Equal(t, env.member.ID, events[0].AccountID)

	down := setupServer(t, fakeNotifications{err: notification.ErrUnavailable})
	w = down.do(http.MethodGet, basePath+"/api/notification/v1/notifications/ping", down.libTok, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
