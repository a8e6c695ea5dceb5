package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Gauravpathak1789/Bookly/internal/domain"
	"github.com/Gauravpathak1789/Bookly/internal/service"
)

func newBookService() (*service.BookService, *memoryBookRepo) {
	books := newMemoryBookRepo()
	return service.NewBookService(books, zap.NewNop()), books
}

func verifiedActor() domain.Account {
	return domain.Account{ID: uuid.New(), Role: domain.RoleUser, Active: true, Verified: true}
}

func TestBookCreateRequiresVerifiedEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := newBookService()

	actor := verifiedActor()
	actor.Verified = false
	_, err := svc.Create(ctx, actor, service.BookInput{Title: "Things Fall Apart", Author: "Chinua Achebe"})
	require.ErrorIs(t, err, domain.ErrEmailUnverified)

	actor.Verified = true
	book, err := svc.Create(ctx, actor, service.BookInput{Title: "Things Fall Apart", Author: "Chinua Achebe"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, book.ID)
}

func TestBookPatchAppliesOnlySetFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newBookService()
	actor := verifiedActor()

	book, err := svc.Create(ctx, actor, service.BookInput{
		Title:     "Original",
		Author:    "Someone",
		Publisher: "Acme",
		PageCount: 100,
	})
	require.NoError(t, err)

	title := "Revised"
	pages := 250
	updated, err := svc.Update(ctx, actor, book.ID, service.BookPatch{Title: &title, PageCount: &pages})
	require.NoError(t, err)
	require.Equal(t, "Revised", updated.Title)
	require.Equal(t, 250, updated.PageCount)
	require.Equal(t, "Someone", updated.Author)
	require.Equal(t, "Acme", updated.Publisher)
}

func TestBookPatchUnverifiedActor(t *testing.T) {
	ctx := context.Background()
	svc, _ := newBookService()
	actor := verifiedActor()

	book, err := svc.Create(ctx, actor, service.BookInput{Title: "A"})
	require.NoError(t, err)

	actor.Verified = false
	title := "B"
	_, err = svc.Update(ctx, actor, book.ID, service.BookPatch{Title: &title})
	require.ErrorIs(t, err, domain.ErrEmailUnverified)
}

func TestBookPatchUnknownID(t *testing.T) {
	svc, _ := newBookService()
	title := "B"
	_, err := svc.Update(context.Background(), verifiedActor(), uuid.New(), service.BookPatch{Title: &title})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBookDeleteRoleGate(t *testing.T) {
	ctx := context.Background()
	svc, books := newBookService()
	actor := verifiedActor()

	book, err := svc.Create(ctx, actor, service.BookInput{Title: "Short-lived"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, actor, book.ID), domain.ErrForbidden)

	mod := verifiedActor()
	mod.Role = domain.RoleModerator
	require.NoError(t, svc.Delete(ctx, mod, book.ID))

	_, err = books.GetByID(ctx, book.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.ErrorIs(t, svc.Delete(ctx, mod, book.ID), domain.ErrNotFound)
}

func TestBookPatchEmptyIsNoOp(t *testing.T) {
	require.True(t, service.BookPatch{}.Empty())
	title := "x"
	require.False(t, service.BookPatch{Title: &title}.Empty())
}

type memoryBookRepo struct {
	books map[uuid.UUID]domain.Book
}

func newMemoryBookRepo() *memoryBookRepo {
	return &memoryBookRepo{books: make(map[uuid.UUID]domain.Book)}
}

func (m *memoryBookRepo) List(_ context.Context) ([]domain.Book, error) {
	all := make([]domain.Book, 0, len(m.books))
	for _, book := range m.books {
		all = append(all, book)
	}
	return all, nil
}

func (m *memoryBookRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Book, error) {
	book, ok := m.books[id]
	if !ok {
		return domain.Book{}, domain.ErrNotFound
	}
	return book, nil
}

func (m *memoryBookRepo) Create(_ context.Context, book domain.Book) (domain.Book, error) {
	book.CreatedAt = time.Now()
	book.UpdatedAt = book.CreatedAt
	m.books[book.ID] = book
	return book, nil
}

func (m *memoryBookRepo) Update(_ context.Context, book domain.Book) (domain.Book, error) {
	if _, ok := m.books[book.ID]; !ok {
		return domain.Book{}, domain.ErrNotFound
	}
	book.UpdatedAt = time.Now()
	m.books[book.ID] = book
	return book, nil
}

func (m *memoryBookRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.books[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.books, id)
	return nil
}
