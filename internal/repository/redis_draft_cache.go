package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"course-builder/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check
var _ DraftRepository = (*cachedDraftRepository)(nil)

// cachedDraftRepository decorates a DraftRepository with a Redis
// read-through cache for GetByID. Cache failures never fail the operation.
type cachedDraftRepository struct {
	inner  DraftRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDraftRepository wraps inner with a Redis draft cache.
func NewCachedDraftRepository(inner DraftRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) DraftRepository {
	return &cachedDraftRepository{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.Named("DraftCache"),
	}
}

func draftCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("draft:%s", id.String())
}

func (r *cachedDraftRepository) Save(ctx context.Context, draft *models.Draft) error {
	if err := r.inner.Save(ctx, draft); err != nil {
		return err
	}
	r.put(ctx, draft)
	return nil
}

func (r *cachedDraftRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	raw, err := r.client.Get(ctx, draftCacheKey(id)).Bytes()
	if err == nil {
		var draft models.Draft
		if err := json.Unmarshal(raw, &draft); err == nil {
			r.logger.Debug("Draft cache hit", zap.String("draftID", id.String()))
			return &draft, nil
		}
		// Corrupt entry, drop it and fall through to the database.
		r.client.Del(ctx, draftCacheKey(id))
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Warn("Draft cache read failed", zap.String("draftID", id.String()), zap.Error(err))
	}

	draft, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.put(ctx, draft)
	return draft, nil
}

func (r *cachedDraftRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, cursor string, limit int) ([]models.Draft, string, error) {
	// Listings are not cached; they change on every auto-save tick.
	return r.inner.ListByOwner(ctx, ownerID, cursor, limit)
}

func (r *cachedDraftRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	if err := r.inner.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	if err := r.client.Del(ctx, draftCacheKey(id)).Err(); err != nil {
		r.logger.Warn("Draft cache invalidation failed", zap.String("draftID", id.String()), zap.Error(err))
	}
	return nil
}

func (r *cachedDraftRepository) put(ctx context.Context, draft *models.Draft) {
	raw, err := json.Marshal(draft)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, draftCacheKey(draft.ID), raw, r.ttl).Err(); err != nil {
		r.logger.Warn("Draft cache write failed", zap.String("draftID", draft.ID.String()), zap.Error(err))
	}
}
