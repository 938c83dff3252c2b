package wizard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"course-builder/internal/generation"
	"course-builder/internal/models"
	repoMocks "course-builder/internal/repository/mocks"
	serviceMocks "course-builder/internal/service/mocks"
	"course-builder/internal/wizard"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeGenerator lets tests script each generation operation. Unset
// functions fall through to the mock-mode client.
type fakeGenerator struct {
	outlineFn func(ctx context.Context, info models.BasicInfo, objectives []models.Objective) (*models.CourseOutline, error)
	moduleFn  func(ctx context.Context, module models.ModuleOutline) (*models.ModuleContent, error)
	enhanceFn func(ctx context.Context, data models.CourseData) (*models.CourseData, error)

	fallback generation.Client
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{
		fallback: generation.NewClient(nil, generation.Options{MockMode: true}, zap.NewNop()),
	}
}

func (f *fakeGenerator) GenerateOutline(ctx context.Context, info models.BasicInfo, objectives []models.Objective) (*models.CourseOutline, error) {
	if f.outlineFn != nil {
		return f.outlineFn(ctx, info, objectives)
	}
	return f.fallback.GenerateOutline(ctx, info, objectives)
}

func (f *fakeGenerator) GenerateModuleContent(ctx context.Context, info models.BasicInfo, objectives []models.Objective, outline models.CourseOutline, module models.ModuleOutline) (*models.ModuleContent, error) {
	if f.moduleFn != nil {
		return f.moduleFn(ctx, module)
	}
	return f.fallback.GenerateModuleContent(ctx, info, objectives, outline, module)
}

func (f *fakeGenerator) SuggestObjectives(ctx context.Context, info models.BasicInfo) ([]models.Objective, error) {
	return f.fallback.SuggestObjectives(ctx, info)
}

func (f *fakeGenerator) EnhanceContent(ctx context.Context, data models.CourseData) (*models.CourseData, error) {
	if f.enhanceFn != nil {
		return f.enhanceFn(ctx, data)
	}
	return f.fallback.EnhanceContent(ctx, data)
}

type sessionFixture struct {
	session   *wizard.Session
	generator *fakeGenerator
	drafts    *repoMocks.DraftRepository
	courses   *serviceMocks.CourseService
	ownerID   uuid.UUID
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		generator: newFakeGenerator(),
		drafts:    new(repoMocks.DraftRepository),
		courses:   new(serviceMocks.CourseService),
		ownerID:   uuid.New(),
	}
	f.drafts.On("Save", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.session = wizard.NewSession(f.ownerID, wizard.SessionDeps{
		Generator:        f.generator,
		Drafts:           f.drafts,
		Courses:          f.courses,
		Logger:           zap.NewNop(),
		AutosaveInterval: 50 * time.Millisecond,
	})
	t.Cleanup(func() {
		f.session.Close(context.Background())
	})
	return f
}

func validBasicInfo() models.BasicInfo {
	return models.BasicInfo{Title: "Intro to X", Description: "A course about X", Category: "tech"}
}

func waitForGenerationIdle(t *testing.T, s *wizard.Session) {
	t.Helper()
	require.Eventually(t, func() bool {
		return !s.State().Generation.IsGenerating
	}, 2*time.Second, 5*time.Millisecond, "generation did not settle")
}

func TestAdvanceValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("basic-info with empty fields self-transitions with field errors", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.session.Advance(ctx)

		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, models.PhaseBasicInfo, verr.Phase)
		assert.NotEmpty(t, verr.Fields)
		assert.Contains(t, verr.Fields, "title")
		assert.Equal(t, models.PhaseBasicInfo, f.session.State().Phase)
		assert.Equal(t, verr.Fields, f.session.State().FieldErrors)
	})

	t.Run("learning-objectives without objectives self-transitions", func(t *testing.T) {
		f := newSessionFixture(t)
		require.NoError(t, f.session.SetBasicInfo(validBasicInfo()))
		_, err := f.session.Advance(ctx)
		require.NoError(t, err)
		require.Equal(t, models.PhaseLearningObjectives, f.session.State().Phase)

		_, err = f.session.Advance(ctx)
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "objectives")
		assert.Equal(t, models.PhaseLearningObjectives, f.session.State().Phase)
	})

	t.Run("mutation clears recorded field errors", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.session.Advance(ctx)
		require.Error(t, err)
		require.NotEmpty(t, f.session.State().FieldErrors)

		require.NoError(t, f.session.SetBasicInfo(validBasicInfo()))
		assert.Empty(t, f.session.State().FieldErrors)
	})
}

func TestRetreat(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op at the first phase", func(t *testing.T) {
		f := newSessionFixture(t)
		require.NoError(t, f.session.Retreat())
		assert.Equal(t, models.PhaseBasicInfo, f.session.State().Phase)
	})

	t.Run("moves to the immediate predecessor unconditionally", func(t *testing.T) {
		f := newSessionFixture(t)
		require.NoError(t, f.session.SetBasicInfo(validBasicInfo()))
		_, err := f.session.Advance(ctx)
		require.NoError(t, err)
		require.Equal(t, models.PhaseLearningObjectives, f.session.State().Phase)

		require.NoError(t, f.session.Retreat())
		assert.Equal(t, models.PhaseBasicInfo, f.session.State().Phase)
	})
}

func TestAdvanceGeneration(t *testing.T) {
	ctx := context.Background()

	advanceToOutline := func(t *testing.T, f *sessionFixture) {
		t.Helper()
		require.NoError(t, f.session.SetBasicInfo(validBasicInfo()))
		_, err := f.session.Advance(ctx)
		require.NoError(t, err)
		require.NoError(t, f.session.SetObjectives([]models.Objective{{Text: "Students will be able to define X"}}))
		_, err = f.session.Advance(ctx)
		require.NoError(t, err)
		require.Equal(t, models.PhaseOutlineGeneration, f.session.State().Phase)
	}

	t.Run("entering outline-generation triggers outline generation once", func(t *testing.T) {
		f := newSessionFixture(t)
		calls := 0
		var mu sync.Mutex
		f.generator.outlineFn = func(ctx context.Context, info models.BasicInfo, objectives []models.Objective) (*models.CourseOutline, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return f.generator.fallback.GenerateOutline(ctx, info, objectives)
		}

		advanceToOutline(t, f)
		waitForGenerationIdle(t, f.session)

		state := f.session.State()
		require.NotNil(t, state.CourseData.Outline)
		assert.NotEmpty(t, state.CourseData.Outline.Modules)
		assert.Empty(t, state.Generation.Error)
		mu.Lock()
		assert.Equal(t, 1, calls)
		mu.Unlock()
	})

	t.Run("advance is rejected while generation is in flight", func(t *testing.T) {
		f := newSessionFixture(t)
		release := make(chan struct{})
		f.generator.outlineFn = func(ctx context.Context, info models.BasicInfo, objectives []models.Objective) (*models.CourseOutline, error) {
			<-release
			return f.generator.fallback.GenerateOutline(ctx, info, objectives)
		}

		advanceToOutline(t, f)
		require.True(t, f.session.State().Generation.IsGenerating)

		_, err := f.session.Advance(ctx)
		assert.ErrorIs(t, err, models.ErrGenerationInProgress)

		close(release)
		waitForGenerationIdle(t, f.session)
	})

	t.Run("failed generation keeps the phase and advance re-triggers it", func(t *testing.T) {
		f := newSessionFixture(t)
		var mu sync.Mutex
		calls := 0
		f.generator.outlineFn = func(ctx context.Context, info models.BasicInfo, objectives []models.Objective) (*models.CourseOutline, error) {
			mu.Lock()
			calls++
			failing := calls == 1
			mu.Unlock()
			if failing {
				return nil, &models.GenerationError{Operation: "outline", Err: errors.New("backend unreachable")}
			}
			return f.generator.fallback.GenerateOutline(ctx, info, objectives)
		}

		advanceToOutline(t, f)
		waitForGenerationIdle(t, f.session)

		state := f.session.State()
		assert.Equal(t, models.PhaseOutlineGeneration, state.Phase)
		assert.NotEmpty(t, state.Generation.Error)
		assert.Nil(t, state.CourseData.Outline)

		// User-driven retry: advance re-triggers instead of validating.
		course, err := f.session.Advance(ctx)
		require.NoError(t, err)
		assert.Nil(t, course)
		waitForGenerationIdle(t, f.session)

		state = f.session.State()
		assert.Equal(t, models.PhaseOutlineGeneration, state.Phase)
		require.NotNil(t, state.CourseData.Outline)
		assert.Empty(t, state.Generation.Error)
	})

	t.Run("module batch is all-or-nothing", func(t *testing.T) {
		f := newSessionFixture(t)
		f.generator.moduleFn = func(ctx context.Context, module models.ModuleOutline) (*models.ModuleContent, error) {
			if module.Index == 1 {
				return nil, errors.New("module generation failed")
			}
			return &models.ModuleContent{
				ModuleIndex: module.Index,
				Title:       module.Title,
				Sections:    []models.ContentSection{{Heading: "h", Body: "b"}},
			}, nil
		}

		advanceToOutline(t, f)
		waitForGenerationIdle(t, f.session)
		require.NotNil(t, f.session.State().CourseData.Outline)

		_, err := f.session.Advance(ctx)
		require.NoError(t, err)
		require.Equal(t, models.PhaseContentCreation, f.session.State().Phase)
		waitForGenerationIdle(t, f.session)

		state := f.session.State()
		assert.NotEmpty(t, state.Generation.Error)
		// No partial results are merged.
		assert.Empty(t, state.CourseData.Modules)
	})

	t.Run("stale generation result is discarded after LoadDraft", func(t *testing.T) {
		f := newSessionFixture(t)
		release := make(chan struct{})
		f.generator.outlineFn = func(ctx context.Context, info models.BasicInfo, objectives []models.Objective) (*models.CourseOutline, error) {
			<-release
			return f.generator.fallback.GenerateOutline(ctx, info, objectives)
		}

		advanceToOutline(t, f)
		require.True(t, f.session.State().Generation.IsGenerating)

		replacement := &models.Draft{
			ID:        uuid.New(),
			OwnerID:   f.ownerID,
			Phase:     models.PhaseBasicInfo,
			PhaseData: models.PhaseData{BasicInfo: validBasicInfo()},
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		f.drafts.On("GetByID", mock.Anything, replacement.ID).Return(replacement, nil).Once()
		require.NoError(t, f.session.LoadDraft(ctx, replacement.ID))

		state := f.session.State()
		assert.Equal(t, models.PhaseBasicInfo, state.Phase)
		assert.False(t, state.Generation.IsGenerating)

		close(release)
		// The superseded outline resolves but must not touch CourseData.
		time.Sleep(100 * time.Millisecond)
		state = f.session.State()
		assert.Nil(t, state.CourseData.Outline)
		assert.False(t, state.Generation.IsGenerating)
		assert.Empty(t, state.Generation.Error)
	})
}

func TestLoadDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces phase and data wholesale", func(t *testing.T) {
		f := newSessionFixture(t)
		draft := &models.Draft{
			ID:      uuid.New(),
			OwnerID: f.ownerID,
			Phase:   models.PhaseOutlineGeneration,
			PhaseData: models.PhaseData{
				BasicInfo:  validBasicInfo(),
				Objectives: []models.Objective{{ID: "obj-1", Text: "Define X"}},
			},
			CourseData: models.CourseData{
				Outline: &models.CourseOutline{Modules: []models.ModuleOutline{{Index: 0, Title: "M1"}}},
			},
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
		f.drafts.On("GetByID", mock.Anything, draft.ID).Return(draft, nil).Once()

		require.NoError(t, f.session.LoadDraft(ctx, draft.ID))

		state := f.session.State()
		assert.Equal(t, models.PhaseOutlineGeneration, state.Phase)
		assert.Equal(t, draft.PhaseData, state.PhaseData)
		require.NotNil(t, state.CourseData.Outline)
		assert.Equal(t, draft.ID, f.session.DraftID())
	})

	t.Run("missing draft surfaces ErrDraftNotFound", func(t *testing.T) {
		f := newSessionFixture(t)
		draftID := uuid.New()
		f.drafts.On("GetByID", mock.Anything, draftID).Return(nil, models.ErrDraftNotFound).Once()

		err := f.session.LoadDraft(ctx, draftID)
		assert.ErrorIs(t, err, models.ErrDraftNotFound)
		assert.Equal(t, models.PhaseBasicInfo, f.session.State().Phase)
	})

	t.Run("someone else's draft is not loadable", func(t *testing.T) {
		f := newSessionFixture(t)
		draft := &models.Draft{ID: uuid.New(), OwnerID: uuid.New(), Phase: models.PhaseBasicInfo}
		f.drafts.On("GetByID", mock.Anything, draft.ID).Return(draft, nil).Once()

		err := f.session.LoadDraft(ctx, draft.ID)
		assert.ErrorIs(t, err, models.ErrDraftNotFound)
	})

	t.Run("load failure wraps a PersistenceError", func(t *testing.T) {
		f := newSessionFixture(t)
		draftID := uuid.New()
		f.drafts.On("GetByID", mock.Anything, draftID).Return(nil, errors.New("connection refused")).Once()

		err := f.session.LoadDraft(ctx, draftID)
		var perr *models.PersistenceError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, models.PhaseBasicInfo, f.session.State().Phase)
	})
}

func TestEndToEndFlow(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)

	finalized := &models.Course{ID: uuid.New(), OwnerID: f.ownerID, Slug: "intro-to-x-abcd1234", Title: "Intro to X"}
	f.courses.On("Finalize", mock.Anything, mock.Anything, f.ownerID, mock.MatchedBy(func(snapshot models.DraftSnapshot) bool {
		return snapshot.Phase == models.PhaseReviewFinalize &&
			snapshot.CourseData.Complete &&
			snapshot.CourseData.Enhanced &&
			snapshot.CourseData.Outline != nil &&
			len(snapshot.CourseData.Modules) == len(snapshot.CourseData.Outline.Modules)
	})).Return(finalized, nil).Once()

	// basic-info
	require.NoError(t, f.session.SetBasicInfo(validBasicInfo()))
	_, err := f.session.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, models.PhaseLearningObjectives, f.session.State().Phase)

	// learning-objectives
	require.NoError(t, f.session.SetObjectives([]models.Objective{{Text: "Students will be able to define X"}}))
	_, err = f.session.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, models.PhaseOutlineGeneration, f.session.State().Phase)

	// outline-generation
	waitForGenerationIdle(t, f.session)
	state := f.session.State()
	require.NotNil(t, state.CourseData.Outline)
	require.NotEmpty(t, state.CourseData.Outline.Modules)

	_, err = f.session.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, models.PhaseContentCreation, f.session.State().Phase)

	// content-creation: content for every outline module
	waitForGenerationIdle(t, f.session)
	state = f.session.State()
	require.Len(t, state.CourseData.Modules, len(state.CourseData.Outline.Modules))
	for _, module := range state.CourseData.Outline.Modules {
		assert.NotNil(t, state.CourseData.ModuleByIndex(module.Index))
	}

	_, err = f.session.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, models.PhaseReviewFinalize, f.session.State().Phase)

	// review-finalize: enhancement applied
	waitForGenerationIdle(t, f.session)
	state = f.session.State()
	require.True(t, state.CourseData.Enhanced)
	require.True(t, state.CourseData.Complete)

	// completion
	course, err := f.session.Advance(ctx)
	require.NoError(t, err)
	require.NotNil(t, course)
	assert.Equal(t, finalized.ID, course.ID)

	state = f.session.State()
	assert.True(t, state.Completed)
	require.NotNil(t, state.CourseID)
	assert.Equal(t, finalized.ID, *state.CourseID)

	f.courses.AssertExpectations(t)
}

func TestFinalizeDraftBinding(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)

	// Drive the wizard to a complete review-finalize phase.
	require.NoError(t, f.session.SetBasicInfo(validBasicInfo()))
	_, err := f.session.Advance(ctx)
	require.NoError(t, err)
	require.NoError(t, f.session.SetObjectives([]models.Objective{{Text: "Students will be able to define X"}}))
	_, err = f.session.Advance(ctx)
	require.NoError(t, err)
	waitForGenerationIdle(t, f.session)
	_, err = f.session.Advance(ctx)
	require.NoError(t, err)
	waitForGenerationIdle(t, f.session)
	_, err = f.session.Advance(ctx)
	require.NoError(t, err)
	waitForGenerationIdle(t, f.session)
	require.True(t, f.session.State().CourseData.Complete)

	originalDraftID := f.session.DraftID()
	replacement := &models.Draft{
		ID:        uuid.New(),
		OwnerID:   f.ownerID,
		Phase:     models.PhaseBasicInfo,
		PhaseData: models.PhaseData{BasicInfo: validBasicInfo()},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	f.drafts.On("GetByID", mock.Anything, replacement.ID).Return(replacement, nil).Once()

	started := make(chan struct{})
	release := make(chan struct{})
	var finalizedDraftID uuid.UUID
	finalized := &models.Course{ID: uuid.New(), OwnerID: f.ownerID, Title: "Intro to X"}
	f.courses.On("Finalize", mock.Anything, mock.Anything, f.ownerID, mock.Anything).
		Run(func(args mock.Arguments) {
			finalizedDraftID = args.Get(1).(uuid.UUID)
			close(started)
			<-release
		}).
		Return(finalized, nil).Once()

	done := make(chan struct{})
	var course *models.Course
	var advErr error
	go func() {
		defer close(done)
		course, advErr = f.session.Advance(ctx)
	}()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("finalization did not start")
	}

	// Swapping drafts while finalization is in flight must not change
	// which draft gets finalized and consumed.
	require.NoError(t, f.session.LoadDraft(ctx, replacement.ID))
	close(release)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("advance did not return")
	}
	require.NoError(t, advErr)
	require.NotNil(t, course)
	assert.Equal(t, originalDraftID, finalizedDraftID)
}

func TestSessionClose(t *testing.T) {
	ctx := context.Background()

	t.Run("closed session rejects mutations and transitions", func(t *testing.T) {
		f := newSessionFixture(t)
		require.NoError(t, f.session.Close(ctx))

		assert.ErrorIs(t, f.session.SetBasicInfo(validBasicInfo()), models.ErrSessionClosed)
		_, err := f.session.Advance(ctx)
		assert.ErrorIs(t, err, models.ErrSessionClosed)
		assert.ErrorIs(t, f.session.Retreat(), models.ErrSessionClosed)
	})

	t.Run("close flushes the latest snapshot", func(t *testing.T) {
		f := newSessionFixture(t)
		require.NoError(t, f.session.SetBasicInfo(validBasicInfo()))

		require.NoError(t, f.session.Close(ctx))
		f.drafts.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(draft *models.Draft) bool {
			return draft.PhaseData.BasicInfo.Title == "Intro to X" && draft.OwnerID == f.ownerID
		}))
	})

	t.Run("subscriber channel closes with the session", func(t *testing.T) {
		f := newSessionFixture(t)
		states, cancel := f.session.Subscribe()
		defer cancel()

		require.NoError(t, f.session.Close(ctx))
		require.Eventually(t, func() bool {
			for {
				select {
				case _, ok := <-states:
					if !ok {
						return true
					}
				default:
					return false
				}
			}
		}, time.Second, 5*time.Millisecond)
	})
}
