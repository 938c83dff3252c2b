package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"course-builder/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check
var _ CourseRepository = (*pgCourseRepository)(nil)

type pgCourseRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgCourseRepository creates a Postgres-backed course repository.
func NewPgCourseRepository(db DBTX, logger *zap.Logger) CourseRepository {
	return &pgCourseRepository{
		db:     db,
		logger: logger.Named("PgCourseRepo"),
	}
}

func (r *pgCourseRepository) Create(ctx context.Context, course *models.Course) error {
	query := `
        INSERT INTO courses
            (id, owner_id, slug, title, description, category, data, created_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8)
    `
	logFields := []zap.Field{
		zap.String("courseID", course.ID.String()),
		zap.String("ownerID", course.OwnerID.String()),
		zap.String("slug", course.Slug),
	}
	r.logger.Debug("Creating course", logFields...)

	dataJSON, err := json.Marshal(course.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal course data: %w", err)
	}

	_, err = r.db.Exec(ctx, query,
		course.ID,
		course.OwnerID,
		course.Slug,
		course.Title,
		course.Description,
		course.Category,
		dataJSON,
		course.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create course", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to create course %s: %w", course.ID, err)
	}
	r.logger.Info("Course created successfully", logFields...)
	return nil
}

func (r *pgCourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	query := `
        SELECT id, owner_id, slug, title, description, category, data, created_at
        FROM courses
        WHERE id = $1
    `
	logFields := []zap.Field{zap.String("courseID", id.String())}
	r.logger.Debug("Getting course by ID", logFields...)

	var (
		course   models.Course
		dataJSON []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&course.ID, &course.OwnerID, &course.Slug,
		&course.Title, &course.Description, &course.Category,
		&dataJSON, &course.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Course not found by ID", logFields...)
			return nil, models.ErrCourseNotFound
		}
		r.logger.Error("Failed to get course by ID", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to get course %s: %w", id, err)
	}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &course.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal course data: %w", err)
		}
	}
	return &course, nil
}
