package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"course-builder/internal/messaging"
	"course-builder/internal/models"
	"course-builder/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CourseService turns finished wizard drafts into published courses.
type CourseService interface {
	// Finalize persists the draft's course data as a course, removes the
	// draft, and emits a course.completed event. The snapshot must carry
	// complete course data or ErrCourseNotComplete is returned.
	Finalize(ctx context.Context, draftID, ownerID uuid.UUID, snapshot models.DraftSnapshot) (*models.Course, error)
	GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

type courseServiceImpl struct {
	courses   repository.CourseRepository
	drafts    repository.DraftRepository
	publisher messaging.CourseEventPublisher
	logger    *zap.Logger
}

// NewCourseService creates a new instance of CourseService.
func NewCourseService(
	courses repository.CourseRepository,
	drafts repository.DraftRepository,
	publisher messaging.CourseEventPublisher,
	logger *zap.Logger,
) CourseService {
	return &courseServiceImpl{
		courses:   courses,
		drafts:    drafts,
		publisher: publisher,
		logger:    logger.Named("CourseService"),
	}
}

func (s *courseServiceImpl) Finalize(ctx context.Context, draftID, ownerID uuid.UUID, snapshot models.DraftSnapshot) (*models.Course, error) {
	log := s.logger.With(zap.String("draftID", draftID.String()), zap.String("ownerID", ownerID.String()))
	log.Info("Finalize called")

	if snapshot.Phase != models.PhaseReviewFinalize || !snapshot.CourseData.Complete {
		log.Warn("Finalize rejected: course data is not complete", zap.String("phase", string(snapshot.Phase)))
		return nil, models.ErrCourseNotComplete
	}

	now := time.Now().UTC()
	course := &models.Course{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       snapshot.PhaseData.BasicInfo.Title,
		Description: snapshot.PhaseData.BasicInfo.Description,
		Category:    snapshot.PhaseData.BasicInfo.Category,
		Data:        snapshot.CourseData,
		CreatedAt:   now,
	}
	course.Slug = buildSlug(course.Title, course.ID)

	if err := s.courses.Create(ctx, course); err != nil {
		log.Error("Failed to persist finalized course", zap.Error(err))
		return nil, fmt.Errorf("failed to persist course: %w", err)
	}

	// The draft is consumed by finalization. A missing row here means a
	// concurrent delete already took care of it.
	if err := s.drafts.Delete(ctx, draftID, ownerID); err != nil && err != models.ErrDraftNotFound {
		log.Warn("Failed to delete source draft after finalization", zap.Error(err))
	}

	event := messaging.CourseCompletedEvent{
		CourseID:    course.ID.String(),
		OwnerID:     ownerID.String(),
		Slug:        course.Slug,
		Title:       course.Title,
		CompletedAt: now,
	}
	// The course row is the source of truth; a lost event is recoverable
	// by re-indexing, so publish failures do not fail the request.
	if err := s.publisher.PublishCourseCompleted(ctx, event); err != nil {
		log.Error("Failed to publish course completed event", zap.String("courseID", course.ID.String()), zap.Error(err))
	}

	log.Info("Course finalized", zap.String("courseID", course.ID.String()), zap.String("slug", course.Slug))
	return course, nil
}

func (s *courseServiceImpl) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return s.courses.GetByID(ctx, id)
}

// buildSlug derives a URL slug from the course title plus a short unique
// suffix, so two courses with the same title never collide.
func buildSlug(title string, id uuid.UUID) string {
	var b strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		case !prevDash:
			b.WriteByte('-')
			prevDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "course"
	}
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	return slug + "-" + id.String()[:8]
}
