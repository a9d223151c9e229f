package teacher

import (
	"database/sql"
	"strconv"
	"time"
)

// Teacher is a roster entry: who the teacher is and how to reach them on Telegram.
type Teacher struct {
	ID         int64
	TelegramID int64
	FirstName  string
	LastName   sql.NullString // To handle optional last name
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Key is the teacher id used in document paths.
func (t *Teacher) Key() string {
	return strconv.FormatInt(t.ID, 10)
}

// FullName joins first and last name.
func (t *Teacher) FullName() string {
	if t.LastName.Valid && t.LastName.String != "" {
		return t.FirstName + " " + t.LastName.String
	}
	return t.FirstName
}

// ParseKey turns a document key back into a roster id.
func ParseKey(key string) (int64, error) {
	return strconv.ParseInt(key, 10, 64)
}
