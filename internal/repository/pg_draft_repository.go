package repository

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"course-builder/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// Compile-time check
var _ DraftRepository = (*pgDraftRepository)(nil)

type pgDraftRepository struct {
	db     DBTX
	logger *zap.Logger
}

// NewPgDraftRepository creates a Postgres-backed draft repository.
func NewPgDraftRepository(db DBTX, logger *zap.Logger) DraftRepository {
	return &pgDraftRepository{
		db:     db,
		logger: logger.Named("PgDraftRepo"),
	}
}

// Save upserts the draft row; phase data and course data are stored as JSONB.
func (r *pgDraftRepository) Save(ctx context.Context, draft *models.Draft) error {
	query := `
        INSERT INTO wizard_drafts
            (id, owner_id, phase, phase_data, course_data, created_at, updated_at)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO UPDATE SET
            phase = EXCLUDED.phase,
            phase_data = EXCLUDED.phase_data,
            course_data = EXCLUDED.course_data,
            updated_at = EXCLUDED.updated_at
    `
	logFields := []zap.Field{zap.String("draftID", draft.ID.String()), zap.String("ownerID", draft.OwnerID.String())}
	r.logger.Debug("Saving draft", logFields...)

	phaseDataJSON, err := json.Marshal(draft.PhaseData)
	if err != nil {
		return fmt.Errorf("failed to marshal phase data: %w", err)
	}
	courseDataJSON, err := json.Marshal(draft.CourseData)
	if err != nil {
		return fmt.Errorf("failed to marshal course data: %w", err)
	}

	_, err = r.db.Exec(ctx, query,
		draft.ID,
		draft.OwnerID,
		string(draft.Phase),
		phaseDataJSON,
		courseDataJSON,
		draft.CreatedAt,
		draft.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save draft", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to save draft %s: %w", draft.ID, err)
	}
	r.logger.Debug("Draft saved successfully", logFields...)
	return nil
}

func (r *pgDraftRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	query := `
        SELECT id, owner_id, phase, phase_data, course_data, created_at, updated_at
        FROM wizard_drafts
        WHERE id = $1
    `
	logFields := []zap.Field{zap.String("draftID", id.String())}
	r.logger.Debug("Getting draft by ID", logFields...)

	draft, err := r.scanDraft(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Warn("Draft not found by ID", logFields...)
			return nil, models.ErrDraftNotFound
		}
		r.logger.Error("Failed to get draft by ID", append(logFields, zap.Error(err))...)
		return nil, fmt.Errorf("failed to get draft %s: %w", id, err)
	}
	return draft, nil
}

func (r *pgDraftRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	query := `DELETE FROM wizard_drafts WHERE id = $1 AND owner_id = $2`
	logFields := []zap.Field{zap.String("draftID", id.String()), zap.String("ownerID", ownerID.String())}
	r.logger.Debug("Deleting draft", logFields...)

	commandTag, err := r.db.Exec(ctx, query, id, ownerID)
	if err != nil {
		r.logger.Error("Failed to delete draft", append(logFields, zap.Error(err))...)
		return fmt.Errorf("failed to delete draft %s: %w", id, err)
	}
	if commandTag.RowsAffected() == 0 {
		r.logger.Warn("Attempted to delete non-existent or unauthorized draft", logFields...)
		return models.ErrDraftNotFound
	}
	r.logger.Info("Draft deleted successfully", logFields...)
	return nil
}

// --- Cursor pagination --- //

const cursorSeparator = "_"

// encodeCursor builds a cursor string from a timestamp and UUID.
func encodeCursor(t time.Time, id uuid.UUID) string {
	key := fmt.Sprintf("%d%s%s", t.UnixNano(), cursorSeparator, id.String())
	return base64.URLEncoding.EncodeToString([]byte(key))
}

// decodeCursor splits a cursor string back into timestamp and UUID.
func decodeCursor(cursor string) (time.Time, uuid.UUID, error) {
	if cursor == "" {
		return time.Time{}, uuid.Nil, nil
	}
	decodedBytes, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("bad cursor (base64 decode): %w", err)
	}
	parts := strings.SplitN(string(decodedBytes), cursorSeparator, 2)
	if len(parts) != 2 {
		return time.Time{}, uuid.Nil, fmt.Errorf("bad cursor (separator)")
	}

	timestampNano, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("bad cursor (timestamp): %w", err)
	}
	t := time.Unix(0, timestampNano).UTC()

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("bad cursor (uuid): %w", err)
	}

	return t, id, nil
}

// ListByOwner returns the owner's drafts with cursor pagination, newest first.
func (r *pgDraftRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, cursor string, limit int) ([]models.Draft, string, error) {
	if limit <= 0 {
		limit = 10
	}
	// +1 to detect the next page
	fetchLimit := limit + 1

	cursorTime, cursorID, err := decodeCursor(cursor)
	if err != nil {
		r.logger.Warn("Failed to decode cursor", zap.String("ownerID", ownerID.String()), zap.String("cursor", cursor), zap.Error(err))
		return nil, "", ErrInvalidCursor
	}

	var queryBuilder strings.Builder
	args := []any{ownerID}
	paramIndex := 2

	queryBuilder.WriteString(`
        SELECT id, owner_id, phase, phase_data, course_data, created_at, updated_at
        FROM wizard_drafts
        WHERE owner_id = $1
    `)

	if !cursorTime.IsZero() {
		queryBuilder.WriteString(fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", paramIndex, paramIndex+1))
		args = append(args, cursorTime, cursorID)
		paramIndex += 2
	}

	queryBuilder.WriteString(fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", paramIndex))
	args = append(args, fetchLimit)

	logFields := []zap.Field{
		zap.String("ownerID", ownerID.String()),
		zap.Int("limit", limit),
		zap.String("cursor", cursor),
	}
	r.logger.Debug("Listing owner drafts", logFields...)

	rows, err := r.db.Query(ctx, queryBuilder.String(), args...)
	if err != nil {
		r.logger.Error("Failed to query owner drafts", append(logFields, zap.Error(err))...)
		return nil, "", fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	drafts := make([]models.Draft, 0, limit)
	for rows.Next() {
		draft, err := r.scanDraft(rows)
		if err != nil {
			r.logger.Error("Failed to scan draft row", append(logFields, zap.Error(err))...)
			return nil, "", fmt.Errorf("failed to read draft row: %w", err)
		}
		drafts = append(drafts, *draft)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating draft rows", append(logFields, zap.Error(err))...)
		return nil, "", fmt.Errorf("failed after reading draft rows: %w", err)
	}

	var nextCursor string
	if len(drafts) > limit {
		last := drafts[limit-1]
		nextCursor = encodeCursor(last.CreatedAt, last.ID)
		drafts = drafts[:limit]
	}

	r.logger.Debug("Owner drafts listed successfully", append(logFields, zap.Int("count", len(drafts)))...)
	return drafts, nextCursor, nil
}

// scanDraft reads one draft row, decoding the JSONB payload columns.
func (r *pgDraftRepository) scanDraft(row pgx.Row) (*models.Draft, error) {
	var (
		draft          models.Draft
		phase          string
		phaseDataJSON  []byte
		courseDataJSON []byte
	)
	err := row.Scan(
		&draft.ID, &draft.OwnerID, &phase,
		&phaseDataJSON, &courseDataJSON,
		&draft.CreatedAt, &draft.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	draft.Phase = models.Phase(phase)
	if len(phaseDataJSON) > 0 {
		if err := json.Unmarshal(phaseDataJSON, &draft.PhaseData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal phase data: %w", err)
		}
	}
	if len(courseDataJSON) > 0 {
		if err := json.Unmarshal(courseDataJSON, &draft.CourseData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal course data: %w", err)
		}
	}
	return &draft, nil
}
