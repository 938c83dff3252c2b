package mocks

import (
	"context"

	"course-builder/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock DraftRepository
type DraftRepository struct {
	mock.Mock
}

func (m *DraftRepository) Save(ctx context.Context, draft *models.Draft) error {
	args := m.Called(ctx, draft)
	return args.Error(0)
}

func (m *DraftRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Draft), args.Error(1)
}

func (m *DraftRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, cursor string, limit int) ([]models.Draft, string, error) {
	args := m.Called(ctx, ownerID, cursor, limit)
	var drafts []models.Draft
	if args.Get(0) != nil {
		drafts = args.Get(0).([]models.Draft)
	}
	return drafts, args.String(1), args.Error(2)
}

func (m *DraftRepository) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	args := m.Called(ctx, id, ownerID)
	return args.Error(0)
}

// Mock CourseRepository
type CourseRepository struct {
	mock.Mock
}

func (m *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	args := m.Called(ctx, course)
	return args.Error(0)
}

func (m *CourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Course), args.Error(1)
}
