package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"library_management/pkg/accounts"
	"library_management/pkg/models"
	"library_management/pkg/notification"
)

func (s *Server) signUp(c *gin.Context) {
	var request signUpRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	view, err := s.accounts.Register(c.Request.Context(), accounts.RegisterInput{
		Username:  request.Username,
		Password:  request.Password,
		FirstName: request.FirstName,
		LastName:  request.LastName,
		Kind:      models.KindMember,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) signInHandler(c *gin.Context) {
	var request signInRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	session, err := s.accounts.SignIn(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) getAccount(c *gin.Context) {
	view, err := s.accounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) getAccountByUsername(c *gin.Context) {
	view, err := s.accounts.GetByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) booksByAccount(c *gin.Context) {
	books, err := s.lending.BooksByAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	items := make([]bookResponse, len(books))
	for i, b := range books {
		items[i] = toBook(b)
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) finesByAccount(c *gin.Context) {
	fines, err := s.lending.FinesByAccount(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	items := make([]fineResponse, len(fines))
	for i, f := range fines {
		items[i] = toFine(f)
	}
	c.JSON(http.StatusOK, items)
}

func (s *Server) toggleStatus(c *gin.Context) {
	view, err := s.accounts.ToggleStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) changeRole(c *gin.Context) {
	view, err := s.accounts.ChangeRole(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) notificationsByAccount(c *gin.Context) {
	events, err := s.notifications.ByAccount(c.Request.Context(), c.Param("accountId"))
	if err != nil {
		s.notificationFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (s *Server) pingNotifications(c *gin.Context) {
	body, err := s.notifications.Ping(c.Request.Context())
	if err != nil {
		s.notificationFailure(c, err)
		return
	}
	c.String(http.StatusOK, body)
}

func (s *Server) notificationFailure(c *gin.Context, err error) {
	s.log.Warn("Notification service call failed", "path", c.FullPath(), "error", err)
	status := http.StatusBadGateway
	if errors.Is(err, notification.ErrUnavailable) {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": "notification service unavailable"})
}
