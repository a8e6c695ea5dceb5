package service

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Gauravpathak1789/Bookly/internal/domain"
	"github.com/Gauravpathak1789/Bookly/internal/repository"
)

// BookInput carries validated catalog fields.
type BookInput struct {
	Title         string
	Author        string
	Publisher     string
	PublishedDate string
	PageCount     int
	Language      string
}

// BookService manages the catalog. Reads require an authenticated account;
// writes additionally require a verified email, enforced by callers.
type BookService struct {
	books  repository.BookRepository
	logger *zap.Logger
	tracer trace.Tracer
}

func NewBookService(books repository.BookRepository, logger *zap.Logger) *BookService {
	return &BookService{
		books:  books,
		logger: logger,
		tracer: otel.Tracer("github.com/Gauravpathak1789/Bookly/internal/service"),
	}
}

func (s *BookService) List(ctx context.Context) ([]domain.Book, error) {
	return s.books.List(ctx)
}

func (s *BookService) Get(ctx context.Context, id uuid.UUID) (domain.Book, error) {
	return s.books.GetByID(ctx, id)
}

func (s *BookService) Create(ctx context.Context, actor domain.Account, in BookInput) (domain.Book, error) {
	ctx, span := s.tracer.Start(ctx, "BookService.Create")
	defer span.End()

	if !actor.Verified {
		return domain.Book{}, domain.ErrEmailUnverified
	}

	book := domain.Book{
		ID:            uuid.New(),
		Title:         in.Title,
		Author:        in.Author,
		Publisher:     in.Publisher,
		PublishedDate: in.PublishedDate,
		PageCount:     in.PageCount,
		Language:      in.Language,
	}
	created, err := s.books.Create(ctx, book)
	if err != nil {
		span.RecordError(err)
		return domain.Book{}, err
	}
	s.logger.Info("book created", zap.String("book_id", created.ID.String()), zap.String("actor_id", actor.ID.String()))
	return created, nil
}

// BookPatch carries the fields of a partial update; nil fields are left
// untouched.
type BookPatch struct {
	Title         *string
	Author        *string
	Publisher     *string
	PublishedDate *string
	PageCount     *int
	Language      *string
}

// Empty reports whether the patch changes nothing.
func (p BookPatch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.Publisher == nil &&
		p.PublishedDate == nil && p.PageCount == nil && p.Language == nil
}

func (s *BookService) Update(ctx context.Context, actor domain.Account, id uuid.UUID, patch BookPatch) (domain.Book, error) {
	ctx, span := s.tracer.Start(ctx, "BookService.Update")
	defer span.End()

	if !actor.Verified {
		return domain.Book{}, domain.ErrEmailUnverified
	}

	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		return domain.Book{}, err
	}
	if patch.Title != nil {
		book.Title = *patch.Title
	}
	if patch.Author != nil {
		book.Author = *patch.Author
	}
	if patch.Publisher != nil {
		book.Publisher = *patch.Publisher
	}
	if patch.PublishedDate != nil {
		book.PublishedDate = *patch.PublishedDate
	}
	if patch.PageCount != nil {
		book.PageCount = *patch.PageCount
	}
	if patch.Language != nil {
		book.Language = *patch.Language
	}

	updated, err := s.books.Update(ctx, book)
	if err != nil {
		span.RecordError(err)
		return domain.Book{}, err
	}
	return updated, nil
}

// Delete removes a catalog record. Moderator or admin only.
func (s *BookService) Delete(ctx context.Context, actor domain.Account, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "BookService.Delete")
	defer span.End()

	if !actor.Role.Meets(domain.RoleModerator) {
		return domain.ErrForbidden
	}
	if err := s.books.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	s.logger.Info("book deleted", zap.String("book_id", id.String()), zap.String("actor_id", actor.ID.String()))
	return nil
}
