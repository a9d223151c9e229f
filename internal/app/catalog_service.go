package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"reading_program_bot/internal/domain/catalog"
	"reading_program_bot/internal/domain/document"
	"reading_program_bot/internal/domain/program"
)

// CatalogService publishes nominee books. A published book never changes.
type CatalogService struct {
	store document.Store
	log   *logrus.Entry
	now   func() time.Time
}

func NewCatalogService(store document.Store, log *logrus.Entry) *CatalogService {
	return &CatalogService{store: store, log: log.WithField("component", "catalog"), now: time.Now}
}

// catalogIndex lists the book ids published for one year.
type catalogIndex struct {
	Year    program.AcademicYear `json:"year"`
	BookIDs []string             `json:"bookIds"`
}

func indexPath(year program.AcademicYear) string { return "catalog/" + string(year) }

// Publish stores book. Publishing the same id twice for a year fails with
// document.ErrAlreadyExists and keeps the first version.
func (s *CatalogService) Publish(ctx context.Context, book catalog.NomineeBook) (*catalog.NomineeBook, error) {
	log := s.log.WithFields(logrus.Fields{"book_id": book.ID, "year": book.Year})
	if err := checkInput(book); err != nil {
		return nil, err
	}
	if err := book.Year.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	book.PublishedAt = s.now()

	stored, err := document.Update(ctx, s.store, catalog.Path(book.Year, book.ID), func(cur *catalog.NomineeBook) (*catalog.NomineeBook, error) {
		if cur != nil {
			return nil, document.ErrAlreadyExists
		}
		b := book
		return &b, nil
	})
	if err != nil {
		log.WithError(err).Warn("Book not published")
		return nil, err
	}

	_, err = document.Update(ctx, s.store, indexPath(book.Year), func(cur *catalogIndex) (*catalogIndex, error) {
		if cur == nil {
			cur = &catalogIndex{Year: book.Year}
		}
		if slices.Contains(cur.BookIDs, book.ID) {
			return nil, document.ErrUnchanged
		}
		cur.BookIDs = append(cur.BookIDs, book.ID)
		slices.Sort(cur.BookIDs)
		return cur, nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to index published book")
		return nil, fmt.Errorf("failed to index book %s: %w", book.ID, err)
	}
	log.Info("Book published")
	return stored, nil
}

// Get returns a published book or catalog.ErrUnknownBook.
func (s *CatalogService) Get(ctx context.Context, year program.AcademicYear, bookID string) (*catalog.NomineeBook, error) {
	b, err := document.Get[catalog.NomineeBook](ctx, s.store, catalog.Path(year, bookID))
	if document.IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownBook, bookID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read book: %w", err)
	}
	return b, nil
}

// List returns the books published for year, ordered by id.
func (s *CatalogService) List(ctx context.Context, year program.AcademicYear) ([]catalog.NomineeBook, error) {
	idx, err := document.Get[catalogIndex](ctx, s.store, indexPath(year))
	if document.IsNotFound(err) {
		return []catalog.NomineeBook{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog index: %w", err)
	}
	paths := make([]string, len(idx.BookIDs))
	for i, id := range idx.BookIDs {
		paths[i] = catalog.Path(year, id)
	}
	bodies, err := document.ReadMany(ctx, s.store, paths)
	if err != nil {
		return nil, fmt.Errorf("failed to read books: %w", err)
	}
	books := make([]catalog.NomineeBook, 0, len(paths))
	for _, p := range paths {
		body, ok := bodies[p]
		if !ok {
			continue
		}
		b, err := document.Decode[catalog.NomineeBook](p, body)
		if err != nil {
			return nil, err
		}
		books = append(books, *b)
	}
	return books, nil
}
