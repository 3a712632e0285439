package api

import (
	"time"

	"github.com/shopspring/decimal"

	"library_management/pkg/lending"
	"library_management/pkg/models"
)

type signUpRequest struct {
	Username  string `json:"username" binding:"required,min=3,max=80"`
	Password  string `json:"password" binding:"required,min=4,max=72"`
	FirstName string `json:"firstName" binding:"max=80"`
	LastName  string `json:"lastName" binding:"max=80"`
}

type signInRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type reserveRequest struct {
	WishedStartDate string `json:"wishedStartDate" binding:"omitempty,datestr"`
	WishedEndDate   string `json:"wishedEndDate" binding:"omitempty,datestr"`
}

type returnRequest struct {
	ReturnDate string `json:"returnDate" binding:"omitempty,datestr"`
}

type bookRequest struct {
	ISBN            string `json:"isbn" binding:"required,max=20,catalogcode"`
	Title           string `json:"title" binding:"required,max=255"`
	SubjectCategory string `json:"subjectCategory" binding:"max=80"`
	RackNumber      string `json:"rackNumber" binding:"max=20"`
	PublicationDate string `json:"publicationDate" binding:"omitempty,datestr"`
	AuthorID        string `json:"authorId" binding:"required"`
}

type itemRequest struct {
	Code  string          `json:"code" binding:"required,catalogcode"`
	Price decimal.Decimal `json:"price"`
}

type authorRequest struct {
	FirstName string `json:"firstName" binding:"max=80"`
	LastName  string `json:"lastName" binding:"required,max=80"`
}

type authorResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type itemResponse struct {
	Code         string              `json:"code"`
	Price        string              `json:"price"`
	Availability models.Availability `json:"availability"`
}

type bookResponse struct {
	ISBN            string         `json:"isbn"`
	Title           string         `json:"title"`
	SubjectCategory string         `json:"subjectCategory"`
	RackNumber      string         `json:"rackNumber"`
	PublicationDate string         `json:"publicationDate,omitempty"`
	Author          authorResponse `json:"author"`
	Items           []itemResponse `json:"items,omitempty"`
}

type fineResponse struct {
	ID            string            `json:"id"`
	ReservationID string            `json:"reservationId"`
	Price         string            `json:"price"`
	Status        models.FineStatus `json:"status"`
}

func toAuthor(a models.Author) authorResponse {
	return authorResponse{ID: a.ID, FirstName: a.FirstName, LastName: a.LastName}
}

func toItem(c models.Copy) itemResponse {
	return itemResponse{Code: c.Code, Price: c.Price.StringFixed(2), Availability: c.Availability}
}

func toBook(b models.Book) bookResponse {
	out := bookResponse{
		ISBN:            b.ISBN,
		Title:           b.Title,
		SubjectCategory: b.SubjectCategory,
		RackNumber:      b.RackNumber,
		Author:          toAuthor(b.Author),
	}
	if !b.PublicationDate.IsZero() {
		out.PublicationDate = b.PublicationDate.Format(time.DateOnly)
	}
	return out
}

func toBookDetails(d lending.BookDetails) bookResponse {
	out := toBook(d.Book)
	out.Items = make([]itemResponse, 0, len(d.Copies))
	for _, c := range d.Copies {
		out.Items = append(out.Items, toItem(c))
	}
	return out
}

func toFine(f models.Fine) fineResponse {
	return fineResponse{ID: f.ID, ReservationID: f.ReservationID, Price: f.Price.StringFixed(2), Status: f.Status}
}
