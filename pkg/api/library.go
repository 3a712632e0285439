package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"library_management/pkg/accounts"
	"library_management/pkg/lending"
	"library_management/pkg/store"
)

func (s *Server) listBooks(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(lending.DefaultPageSize)))
	if err != nil || size < 1 {
		size = lending.DefaultPageSize
	}

	filter := store.BookFilter{
		Title:          c.Query("title"),
		Category:       c.Query("category"),
		AuthorLastName: c.Query("author"),
	}
	if from := c.Query("publishedFrom"); from != "" {
		t, err := time.Parse(time.DateOnly, from)
		if err != nil {
			badRequest(c, err)
			return
		}
		filter.PublishedFrom = &t
	}

	result, err := s.lending.ListBooks(c.Request.Context(), filter, page, size)
	if err != nil {
		s.fail(c, err)
		return
	}
	items := make([]bookResponse, len(result.Books))
	for i, b := range result.Books {
		items[i] = toBook(b)
	}
	c.JSON(http.StatusOK, gin.H{
		"page":          result.Page,
		"pageSize":      result.Size,
		"totalElements": result.Total,
		"items":         items,
	})
}

func (s *Server) getBook(c *gin.Context) {
	details, err := s.lending.GetBook(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookDetails(details))
}

func (s *Server) createBook(c *gin.Context) {
	var request bookRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	published, _ := parseDate(request.PublicationDate)
	in := lending.BookInput{
		ISBN:            request.ISBN,
		Title:           request.Title,
		SubjectCategory: request.SubjectCategory,
		RackNumber:      request.RackNumber,
		AuthorID:        request.AuthorID,
	}
	if published != nil {
		in.PublicationDate = *published
	}

	book, err := s.lending.CreateBook(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBook(book))
}

func (s *Server) deleteBook(c *gin.Context) {
	if err := s.lending.DeleteBook(c.Request.Context(), c.Param("isbn")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) addItem(c *gin.Context) {
	var request itemRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	item, err := s.lending.AddCopy(c.Request.Context(), c.Param("isbn"), request.Code, request.Price)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toItem(item))
}

func (s *Server) deleteItem(c *gin.Context) {
	if err := s.lending.DeleteCopy(c.Request.Context(), c.Param("isbn"), c.Param("code")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) availableItems(c *gin.Context) {
	free, err := s.lending.AvailableCopies(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"isbn":      free.ISBN,
		"available": free.Count,
		"items":     free.Codes,
	})
}

func (s *Server) accountsByBook(c *gin.Context) {
	holders, err := s.lending.AccountsByBook(c.Request.Context(), c.Param("isbn"))
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]accounts.View, len(holders))
	for i, a := range holders {
		views[i] = accounts.ToView(a)
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) reserve(c *gin.Context) {
	var request reserveRequest
	if err := bindOptionalJSON(c, &request); err != nil {
		badRequest(c, err)
		return
	}
	start, _ := parseDate(request.WishedStartDate)
	end, _ := parseDate(request.WishedEndDate)

	_, err := s.lending.Reserve(c.Request.Context(), c.Param("isbn"), c.Param("id"), lending.Window{Start: start, End: end})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) checkout(c *gin.Context) {
	if _, err := s.lending.Checkout(c.Request.Context(), c.Param("isbn"), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) returnBook(c *gin.Context) {
	var request returnRequest
	if err := bindOptionalJSON(c, &request); err != nil {
		badRequest(c, err)
		return
	}
	returnDate, _ := parseDate(request.ReturnDate)

	if _, err := s.lending.Return(c.Request.Context(), c.Param("isbn"), c.Param("id"), returnDate); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) cancel(c *gin.Context) {
	if err := s.lending.Cancel(c.Request.Context(), c.Param("isbn"), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) createAuthor(c *gin.Context) {
	var request authorRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		badRequest(c, err)
		return
	}
	author, err := s.lending.CreateAuthor(c.Request.Context(), request.FirstName, request.LastName)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAuthor(author))
}
