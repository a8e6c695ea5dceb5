package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Gauravpathak1789/Bookly/internal/domain"
	"github.com/Gauravpathak1789/Bookly/internal/http/middleware"
	"github.com/Gauravpathak1789/Bookly/internal/service"
)

// BookHandler exposes the catalog endpoints the authorization gate fronts.
type BookHandler struct {
	Books *service.BookService
}

func NewBookHandler(books *service.BookService) *BookHandler {
	return &BookHandler{Books: books}
}

type bookView struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Publisher     string    `json:"publisher"`
	PublishedDate string    `json:"published_date"`
	PageCount     int       `json:"page_count"`
	Language      string    `json:"language"`
}

func bookViewOf(b domain.Book) bookView {
	return bookView{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Publisher:     b.Publisher,
		PublishedDate: b.PublishedDate,
		PageCount:     b.PageCount,
		Language:      b.Language,
	}
}

func (h *BookHandler) List(c *gin.Context) {
	books, err := h.Books.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	views := make([]bookView, 0, len(books))
	for _, b := range books {
		views = append(views, bookViewOf(b))
	}
	c.JSON(http.StatusOK, views)
}

func (h *BookHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid book id."})
		return
	}
	book, err := h.Books.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookViewOf(book))
}

func (h *BookHandler) Create(c *gin.Context) {
	actor, ok := middleware.GetAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Not authenticated."})
		return
	}
	var req struct {
		Title         string `json:"title" binding:"required"`
		Author        string `json:"author" binding:"required"`
		Publisher     string `json:"publisher" binding:"required"`
		PublishedDate string `json:"published_date" binding:"required"`
		PageCount     int    `json:"page_count" binding:"required"`
		Language      string `json:"language" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		return
	}

	book, err := h.Books.Create(c.Request.Context(), actor, service.BookInput{
		Title:         req.Title,
		Author:        req.Author,
		Publisher:     req.Publisher,
		PublishedDate: req.PublishedDate,
		PageCount:     req.PageCount,
		Language:      req.Language,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bookViewOf(book))
}

func (h *BookHandler) Patch(c *gin.Context) {
	actor, ok := middleware.GetAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Not authenticated."})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid book id."})
		return
	}

	var req struct {
		Title         *string `json:"title"`
		Author        *string `json:"author"`
		Publisher     *string `json:"publisher"`
		PublishedDate *string `json:"published_date"`
		PageCount     *int    `json:"page_count"`
		Language      *string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
		return
	}
	patch := service.BookPatch{
		Title:         req.Title,
		Author:        req.Author,
		Publisher:     req.Publisher,
		PublishedDate: req.PublishedDate,
		PageCount:     req.PageCount,
		Language:      req.Language,
	}
	if patch.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "No fields to update."})
		return
	}

	book, err := h.Books.Update(c.Request.Context(), actor, id, patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookViewOf(book))
}

func (h *BookHandler) Delete(c *gin.Context) {
	actor, ok := middleware.GetAccount(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Not authenticated."})
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid book id."})
		return
	}

	if err := h.Books.Delete(c.Request.Context(), actor, id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *BookHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "error_description": "Book not found."})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "error_description": "You don't have permission to perform this action."})
	case errors.Is(err, domain.ErrEmailUnverified):
		c.JSON(http.StatusForbidden, gin.H{"error": "email_unverified", "error_description": "Email not verified. Please verify your email first."})
	default:
		zap.L().Error("book handler failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
	}
}
