package repository

import (
	"context"
	"errors"

	"course-builder/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrInvalidCursor marks a pagination cursor the repository cannot decode.
var ErrInvalidCursor = errors.New("invalid pagination cursor")

// DBTX is the subset of pgxpool.Pool / pgx.Tx the repositories rely on.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DraftRepository persists wizard draft snapshots.
type DraftRepository interface {
	// Save creates the draft on first call and updates it afterwards.
	Save(ctx context.Context, draft *models.Draft) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	// ListByOwner returns one page of the owner's drafts, newest first,
	// with an opaque cursor for the next page.
	ListByOwner(ctx context.Context, ownerID uuid.UUID, cursor string, limit int) ([]models.Draft, string, error)
	Delete(ctx context.Context, id, ownerID uuid.UUID) error
}

// CourseRepository persists finalized courses.
type CourseRepository interface {
	Create(ctx context.Context, course *models.Course) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
}
