package mocks

import (
	"context"

	"course-builder/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// Mock CourseService
type CourseService struct {
	mock.Mock
}

func (m *CourseService) Finalize(ctx context.Context, draftID, ownerID uuid.UUID, snapshot models.DraftSnapshot) (*models.Course, error) {
	args := m.Called(ctx, draftID, ownerID, snapshot)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Course), args.Error(1)
}

func (m *CourseService) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Course), args.Error(1)
}
