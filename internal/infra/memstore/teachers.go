package memstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"reading_program_bot/internal/domain/teacher"
	idb "reading_program_bot/internal/infra/database"
)

// TeacherRepository is an in-process teacher.Repository with the same errors as the
// Postgres roster.
type TeacherRepository struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]teacher.Teacher
}

func NewTeacherRepository() *TeacherRepository {
	return &TeacherRepository{byID: map[int64]teacher.Teacher{}}
}

func (r *TeacherRepository) Create(_ context.Context, t *teacher.Teacher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byID {
		if e.TelegramID == t.TelegramID {
			return idb.ErrDuplicateTelegramID
		}
	}
	r.nextID++
	now := time.Now()
	t.ID, t.CreatedAt, t.UpdatedAt = r.nextID, now, now
	r.byID[t.ID] = *t
	return nil
}

func (r *TeacherRepository) GetByID(_ context.Context, id int64) (*teacher.Teacher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return nil, idb.ErrTeacherNotFound
	}
	return &t, nil
}

func (r *TeacherRepository) GetByTelegramID(_ context.Context, telegramID int64) (*teacher.Teacher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byID {
		if t.TelegramID == telegramID {
			return &t, nil
		}
	}
	return nil, idb.ErrTeacherNotFound
}

func (r *TeacherRepository) Update(_ context.Context, t *teacher.Teacher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[t.ID]
	if !ok {
		return idb.ErrTeacherNotFound
	}
	cur.FirstName, cur.LastName, cur.IsActive = t.FirstName, t.LastName, t.IsActive
	cur.UpdatedAt = time.Now()
	t.UpdatedAt = cur.UpdatedAt
	r.byID[t.ID] = cur
	return nil
}

func (r *TeacherRepository) ListActive(context.Context) ([]*teacher.Teacher, error) {
	out := r.filter(func(t teacher.Teacher) bool { return t.IsActive })
	slices.SortFunc(out, func(a, b *teacher.Teacher) int {
		if c := strings.Compare(a.FirstName, b.FirstName); c != 0 {
			return c
		}
		return strings.Compare(a.LastName.String, b.LastName.String)
	})
	return out, nil
}

func (r *TeacherRepository) ListAll(context.Context) ([]*teacher.Teacher, error) {
	return r.filter(func(teacher.Teacher) bool { return true }), nil
}

func (r *TeacherRepository) ListByIDs(_ context.Context, ids []int64) ([]*teacher.Teacher, error) {
	return r.filter(func(t teacher.Teacher) bool { return slices.Contains(ids, t.ID) }), nil
}

// filter returns copies ordered by id.
func (r *TeacherRepository) filter(keep func(teacher.Teacher) bool) []*teacher.Teacher {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*teacher.Teacher, 0, len(r.byID))
	for _, t := range r.byID {
		if keep(t) {
			out = append(out, &t)
		}
	}
	slices.SortFunc(out, func(a, b *teacher.Teacher) int { return cmp.Compare(a.ID, b.ID) })
	return out
}
