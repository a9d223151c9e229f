// Package catalog holds the nominee books published for each academic year.
package catalog

import (
	"errors"
	"fmt"
	"time"

	"reading_program_bot/internal/domain/program"
)

var ErrUnknownBook = errors.New("book is not in the nominee catalog for this year")

// NomineeBook is immutable once published. Other records refer to it by ID only.
type NomineeBook struct {
	ID           string               `json:"id" validate:"required,max=64"`
	Title        string               `json:"title" validate:"required"`
	Authors      []string             `json:"authors" validate:"required,min=1"`
	Pages        int                  `json:"pages,omitempty" validate:"gte=0"`
	AudioMinutes int                  `json:"audioMinutes,omitempty" validate:"gte=0"`
	GradeBands   []string             `json:"gradeBands,omitempty"`
	Genres       []string             `json:"genres,omitempty"`
	Year         program.AcademicYear `json:"year" validate:"required"`
	PublishedAt  time.Time            `json:"publishedAt"`
}

// Path is where a book lives in the document store.
func Path(year program.AcademicYear, bookID string) string {
	return fmt.Sprintf("catalog/%s/books/%s", year, bookID)
}
