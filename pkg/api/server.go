// Package api is the HTTP transport of the library service.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"library_management/pkg/accounts"
	"library_management/pkg/auth"
	"library_management/pkg/database"
	"library_management/pkg/faults"
	"library_management/pkg/lending"
	"library_management/pkg/logging"
	"library_management/pkg/models"
	"library_management/pkg/notification"
	"library_management/pkg/ratelimit"
)

const basePath = "/library-management"

type NotificationReader interface {
	ByAccount(ctx context.Context, accountID string) ([]notification.Event, error)
	Ping(ctx context.Context) (string, error)
}

type Deps struct {
	Lending       *lending.Service
	Accounts      *accounts.Service
	Notifications NotificationReader
	Issuer        *auth.Issuer
	SignInLimiter *ratelimit.KeyedLimiter
	DB            *gorm.DB
	Log           *slog.Logger
}

type Server struct {
	lending       *lending.Service
	accounts      *accounts.Service
	notifications NotificationReader
	issuer        *auth.Issuer
	signIn        *ratelimit.KeyedLimiter
	db            *gorm.DB
	log           *slog.Logger
}

func New(d Deps) *Server {
	return &Server{
		lending:       d.Lending,
		accounts:      d.Accounts,
		notifications: d.Notifications,
		issuer:        d.Issuer,
		signIn:        d.SignInLimiter,
		db:            d.DB,
		log:           d.Log,
	}
}

func (s *Server) Router() (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery(), logging.Middleware(s.log))
	router.GET("/manage/health", s.healthCheck)

	base := router.Group(basePath)
	base.POST("/signup", s.signUp)
	base.POST("/signin", ratelimit.Middleware(s.signIn), s.signInHandler)

	librarian := auth.RequireRole(models.KindLibrarian)
	self := auth.RequireSelf("id")

	library := base.Group("/api/library/v1", auth.RequireAuth(s.issuer))
	library.GET("/books", s.listBooks)
	library.POST("/books", librarian, s.createBook)
	library.GET("/books/:isbn", s.getBook)
	library.DELETE("/books/:isbn", librarian, s.deleteBook)
	library.POST("/books/:isbn/items", librarian, s.addItem)
	library.DELETE("/books/:isbn/items/:code", librarian, s.deleteItem)
	library.GET("/books/:isbn/available-items", s.availableItems)
	library.GET("/books/:isbn/accounts", librarian, s.accountsByBook)
	library.POST("/books/:isbn/account/:id/reserve", self, s.reserve)
	library.POST("/books/:isbn/account/:id/checkout", self, s.checkout)
	library.POST("/books/:isbn/account/:id/return", self, s.returnBook)
	library.DELETE("/books/:isbn/account/:id/reservation", self, s.cancel)
	library.POST("/authors", librarian, s.createAuthor)

	account := base.Group("/api/account/v1", auth.RequireAuth(s.issuer), librarian)
	account.GET("/accounts/:id", s.getAccount)
	account.GET("/accounts/username/:username", s.getAccountByUsername)
	account.GET("/accounts/:id/books", s.booksByAccount)
	account.GET("/accounts/:id/fines", s.finesByAccount)
	account.PUT("/accounts/:id/status", s.toggleStatus)
	account.POST("/accounts/:id/role/change", s.changeRole)

	notifications := base.Group("/api/notification/v1", auth.RequireAuth(s.issuer), librarian)
	notifications.GET("/notifications/accounts/:accountId", s.notificationsByAccount)
	notifications.GET("/notifications/ping", s.pingNotifications)

	return router, nil
}

func (s *Server) healthCheck(c *gin.Context) {
	if err := database.Ping(s.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database connection failed",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}

// fail writes err as a JSON fault. Internal errors are logged and hidden.
func (s *Server) fail(c *gin.Context, err error) {
	kind := faults.KindOf(err)
	if kind == faults.KindInternal {
		s.log.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "code": kind})
		return
	}
	c.JSON(faults.StatusOf(err), gin.H{"error": err.Error(), "code": kind})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": err.Error(),
		"code":    faults.KindInvalidInput,
	})
}

// bindOptionalJSON binds the body when there is one.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	err := c.ShouldBindJSON(obj)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
