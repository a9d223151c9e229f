package teacher

import (
	"context"
)

// Repository defines the operations for persisting and retrieving roster entries.
type Repository interface {
	Create(ctx context.Context, teacher *Teacher) error
	GetByID(ctx context.Context, id int64) (*Teacher, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*Teacher, error)
	Update(ctx context.Context, teacher *Teacher) error // FirstName, LastName, IsActive
	ListActive(ctx context.Context) ([]*Teacher, error)
	ListAll(ctx context.Context) ([]*Teacher, error) // For admin purposes
	ListByIDs(ctx context.Context, ids []int64) ([]*Teacher, error)
}
