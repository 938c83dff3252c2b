package mocks

import (
	"context"

	"course-builder/internal/messaging"

	"github.com/stretchr/testify/mock"
)

// Mock CourseEventPublisher
type CourseEventPublisher struct {
	mock.Mock
}

func (m *CourseEventPublisher) PublishCourseCompleted(ctx context.Context, event messaging.CourseCompletedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
