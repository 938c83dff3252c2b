package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"course-builder/internal/generation"
	"course-builder/internal/models"
	"course-builder/internal/repository"
	"course-builder/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is the externally visible snapshot of a wizard session, published
// to progress subscribers and returned by the HTTP API.
type State struct {
	SessionID   uuid.UUID              `json:"sessionId"`
	DraftID     uuid.UUID              `json:"draftId"`
	Phase       models.Phase           `json:"phase"`
	PhaseData   models.PhaseData       `json:"phaseData"`
	CourseData  models.CourseData      `json:"courseData"`
	Generation  models.GenerationState `json:"generation"`
	FieldErrors map[string]string      `json:"fieldErrors,omitempty"`
	Completed   bool                   `json:"completed"`
	CourseID    *uuid.UUID             `json:"courseId,omitempty"`
}

// SessionDeps are the collaborators a session needs.
type SessionDeps struct {
	Generator generation.Client
	Drafts    repository.DraftRepository
	Courses   service.CourseService
	Logger    *zap.Logger
	// AutosaveInterval is the debounce quiet period for draft saves.
	AutosaveInterval time.Duration
}

// Session is the phase-sequencing engine of one authoring session. All
// state transitions go through its typed method surface; every method is
// safe for concurrent use.
type Session struct {
	id      uuid.UUID
	ownerID uuid.UUID
	deps    SessionDeps
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	closed       bool
	phase        models.Phase
	phaseData    models.PhaseData
	courseData   models.CourseData
	genState     models.GenerationState
	fieldErrors  map[string]string
	completed    bool
	courseID     *uuid.UUID
	draftID      uuid.UUID
	createdAt    time.Time
	lastActivity time.Time

	// epoch guards against stale generation results: every generation
	// goroutine captures the epoch at start, and results arriving after
	// LoadDraft bumped it are discarded.
	epoch uint64

	autosave *autosaver

	listeners  map[int]chan State
	listenerID int
}

// NewSession creates a session at the first phase with a server-assigned
// draft identifier.
func NewSession(ownerID uuid.UUID, deps SessionDeps) *Session {
	id := uuid.New()
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now().UTC()
	s := &Session{
		id:           id,
		ownerID:      ownerID,
		deps:         deps,
		logger:       deps.Logger.Named("WizardSession").With(zap.String("sessionID", id.String())),
		ctx:          ctx,
		cancel:       cancel,
		phase:        models.FirstPhase(),
		draftID:      uuid.New(),
		createdAt:    now,
		lastActivity: now,
		listeners:    make(map[int]chan State),
	}
	s.autosave = newAutosaver(deps.AutosaveInterval, s.Snapshot, s.saveDraft, s.logger)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// OwnerID returns the owning instructor's identifier.
func (s *Session) OwnerID() uuid.UUID { return s.ownerID }

// LastActivity returns the time of the last user-driven mutation. The
// session manager uses it for idle eviction.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// --- Phase data mutations --- //

// SetBasicInfo replaces the basic-info form record.
func (s *Session) SetBasicInfo(info models.BasicInfo) error {
	return s.mutate(func() { s.phaseData.BasicInfo = info })
}

// SetObjectives replaces the learning-objectives list, assigning IDs to
// objectives that lack one.
func (s *Session) SetObjectives(objectives []models.Objective) error {
	for i := range objectives {
		if objectives[i].ID == "" {
			objectives[i].ID = uuid.NewString()
		}
	}
	return s.mutate(func() { s.phaseData.Objectives = objectives })
}

// SetOutlineNotes records reviewer notes for the outline phase.
func (s *Session) SetOutlineNotes(notes string) error {
	return s.mutate(func() { s.phaseData.OutlineNotes = notes })
}

// SetContentNotes records reviewer notes for the content phase.
func (s *Session) SetContentNotes(notes string) error {
	return s.mutate(func() { s.phaseData.ContentNotes = notes })
}

// SetReviewNotes records notes for the final review phase.
func (s *Session) SetReviewNotes(notes string) error {
	return s.mutate(func() { s.phaseData.ReviewNotes = notes })
}

func (s *Session) mutate(apply func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.ErrSessionClosed
	}
	apply()
	s.fieldErrors = nil
	s.lastActivity = time.Now().UTC()
	s.notifyLocked()
	s.mu.Unlock()

	s.autosave.Mutated()
	return nil
}

// --- Transitions --- //

// Advance validates the current phase and moves to the next one, firing
// that phase's generation trigger. On the last phase it finalizes the
// course and returns it. If the current phase's generation has not
// succeeded yet, Advance re-triggers it instead (user-driven retry) and
// returns without changing phase. While a generation or finalization is
// pending, Advance is rejected with ErrGenerationInProgress.
func (s *Session) Advance(ctx context.Context) (*models.Course, error) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return nil, models.ErrSessionClosed
	}
	if s.genState.IsGenerating {
		s.mu.Unlock()
		return nil, models.ErrGenerationInProgress
	}

	// A generation phase whose result is absent or failed retries on
	// advance rather than validating.
	if isGenerationPhase(s.phase) && !s.generationDoneLocked() {
		phase := s.phase
		s.startGenerationLocked(phase)
		s.mu.Unlock()
		s.logger.Info("Advance re-triggered generation", zap.String("phase", string(phase)))
		return nil, nil
	}

	if verr := validatePhase(s.phase, s.phaseData, s.courseData); verr != nil {
		s.fieldErrors = verr.Fields
		s.notifyLocked()
		s.mu.Unlock()
		return nil, verr
	}
	s.fieldErrors = nil

	if s.phase.IsLast() {
		return s.finalizeLocked(ctx)
	}

	next, _ := s.phase.Next()
	s.phase = next
	s.lastActivity = time.Now().UTC()
	s.logger.Info("Advanced to next phase", zap.String("phase", string(next)))

	if isGenerationPhase(next) && !s.generationDoneLocked() {
		s.startGenerationLocked(next)
	}
	s.notifyLocked()
	s.mu.Unlock()

	s.autosave.Mutated()
	return nil, nil
}

// Retreat moves to the previous phase unconditionally. It is a no-op at
// the first phase.
func (s *Session) Retreat() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.ErrSessionClosed
	}
	prev, ok := s.phase.Prev()
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.phase = prev
	s.fieldErrors = nil
	s.lastActivity = time.Now().UTC()
	s.logger.Info("Retreated to previous phase", zap.String("phase", string(prev)))
	s.notifyLocked()
	s.mu.Unlock()

	s.autosave.Mutated()
	return nil
}

// LoadDraft replaces phase, PhaseData and CourseData wholesale from a
// persisted draft. Any in-flight generation becomes stale: the epoch is
// bumped, so its result is discarded on arrival.
func (s *Session) LoadDraft(ctx context.Context, draftID uuid.UUID) error {
	draft, err := s.deps.Drafts.GetByID(ctx, draftID)
	if err != nil {
		s.logger.Warn("Draft restore failed", zap.String("draftID", draftID.String()), zap.Error(err))
		if err == models.ErrDraftNotFound {
			return err
		}
		return &models.PersistenceError{Operation: "load", Err: err}
	}
	if draft.OwnerID != s.ownerID {
		return models.ErrDraftNotFound
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.ErrSessionClosed
	}
	s.epoch++
	s.draftID = draft.ID
	s.phase = draft.Phase
	s.phaseData = draft.PhaseData
	s.courseData = draft.CourseData
	s.genState = models.GenerationState{}
	s.fieldErrors = nil
	s.createdAt = draft.CreatedAt
	s.lastActivity = time.Now().UTC()
	s.logger.Info("Draft loaded into session", zap.String("draftID", draft.ID.String()), zap.String("phase", string(draft.Phase)))
	s.notifyLocked()
	s.mu.Unlock()
	return nil
}

// finalizeLocked runs course finalization with the mutex held on entry;
// it releases the lock around the blocking call.
func (s *Session) finalizeLocked(ctx context.Context) (*models.Course, error) {
	s.genState = models.GenerationState{IsGenerating: true, Status: "Finalizing course"}
	draftID := s.draftID
	snapshot := s.snapshotLocked()
	s.notifyLocked()
	s.mu.Unlock()

	course, err := s.deps.Courses.Finalize(ctx, draftID, s.ownerID, snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.genState = models.GenerationState{Error: err.Error()}
		s.notifyLocked()
		return nil, fmt.Errorf("course finalization failed: %w", err)
	}
	s.genState = models.GenerationState{Progress: 100, Status: "Course published"}
	s.completed = true
	s.courseID = &course.ID
	s.autosave.Stop()
	s.logger.Info("Session completed", zap.String("courseID", course.ID.String()))
	s.notifyLocked()
	return course, nil
}

// --- Generation --- //

func isGenerationPhase(p models.Phase) bool {
	switch p {
	case models.PhaseOutlineGeneration, models.PhaseContentCreation, models.PhaseReviewFinalize:
		return true
	}
	return false
}

// generationDoneLocked reports whether the current phase's generation
// result is already present in CourseData.
func (s *Session) generationDoneLocked() bool {
	switch s.phase {
	case models.PhaseOutlineGeneration:
		return s.courseData.Outline != nil && len(s.courseData.Outline.Modules) > 0
	case models.PhaseContentCreation:
		return len(s.courseData.Modules) > 0
	case models.PhaseReviewFinalize:
		return s.courseData.Enhanced
	}
	return true
}

// startGenerationLocked fires the generation trigger for the given phase.
// Caller holds the mutex. The trigger runs asynchronously and is invoked
// at most once per phase entry; a failed run is only re-triggered by a
// subsequent Advance.
func (s *Session) startGenerationLocked(phase models.Phase) {
	s.genState = models.GenerationState{IsGenerating: true, Status: generationStatus(phase)}
	epoch := s.epoch
	s.notifyLocked()

	switch phase {
	case models.PhaseOutlineGeneration:
		go s.generateOutline(epoch)
	case models.PhaseContentCreation:
		go s.generateModuleContent(epoch)
	case models.PhaseReviewFinalize:
		go s.enhanceContent(epoch)
	}
}

func generationStatus(phase models.Phase) string {
	switch phase {
	case models.PhaseOutlineGeneration:
		return "Generating course outline"
	case models.PhaseContentCreation:
		return "Generating module content"
	case models.PhaseReviewFinalize:
		return "Enhancing course content"
	}
	return ""
}

func (s *Session) generateOutline(epoch uint64) {
	s.mu.Lock()
	info := s.phaseData.BasicInfo
	objectives := append([]models.Objective(nil), s.phaseData.Objectives...)
	s.mu.Unlock()

	outline, err := s.deps.Generator.GenerateOutline(s.ctx, info, objectives)
	s.applyGenerationResult(epoch, err, func() {
		s.courseData.Outline = outline
	})
}

// generateModuleContent fans out one generation call per outline module.
// The batch is all-or-nothing: a single failure surfaces as a phase-level
// error and no partial results are merged.
func (s *Session) generateModuleContent(epoch uint64) {
	s.mu.Lock()
	info := s.phaseData.BasicInfo
	objectives := append([]models.Objective(nil), s.phaseData.Objectives...)
	var outline models.CourseOutline
	if s.courseData.Outline != nil {
		outline = *s.courseData.Outline
	}
	s.mu.Unlock()

	if len(outline.Modules) == 0 {
		s.applyGenerationResult(epoch, &models.GenerationError{
			Operation: string(generation.OpModuleContent),
			Err:       fmt.Errorf("no outline modules to generate content for"),
		}, nil)
		return
	}

	results := make([]models.ModuleContent, len(outline.Modules))
	errs := make([]error, len(outline.Modules))
	var (
		wg   sync.WaitGroup
		done int
	)
	for i, module := range outline.Modules {
		wg.Add(1)
		go func(i int, module models.ModuleOutline) {
			defer wg.Done()
			content, err := s.deps.Generator.GenerateModuleContent(s.ctx, info, objectives, outline, module)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = *content

			s.mu.Lock()
			if s.epoch == epoch {
				done++
				s.genState.Progress = done * 100 / len(outline.Modules)
				s.notifyLocked()
			}
			s.mu.Unlock()
		}(i, module)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			s.applyGenerationResult(epoch, err, nil)
			return
		}
	}
	s.applyGenerationResult(epoch, nil, func() {
		s.courseData.Modules = results
	})
}

func (s *Session) enhanceContent(epoch uint64) {
	s.mu.Lock()
	data := s.courseData
	s.mu.Unlock()

	enhanced, err := s.deps.Generator.EnhanceContent(s.ctx, data)
	s.applyGenerationResult(epoch, err, func() {
		s.courseData = *enhanced
		s.courseData.Enhanced = true
		s.courseData.Complete = true
	})
}

// applyGenerationResult records a finished generation run. Results from a
// superseded epoch are discarded without touching session state.
func (s *Session) applyGenerationResult(epoch uint64, err error, apply func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale generation result", zap.Uint64("epoch", epoch))
		return
	}
	if err != nil {
		s.genState = models.GenerationState{Error: err.Error()}
		s.logger.Warn("Generation failed", zap.String("phase", string(s.phase)), zap.Error(err))
		s.notifyLocked()
		s.mu.Unlock()
		return
	}
	apply()
	s.genState = models.GenerationState{Progress: 100}
	s.logger.Info("Generation succeeded", zap.String("phase", string(s.phase)))
	s.notifyLocked()
	s.mu.Unlock()

	s.autosave.Mutated()
}

// --- Snapshots and persistence --- //

// Snapshot returns the persistable wizard state.
func (s *Session) Snapshot() models.DraftSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() models.DraftSnapshot {
	return models.DraftSnapshot{
		Phase:      s.phase,
		PhaseData:  s.phaseData,
		CourseData: s.courseData,
	}
}

// DraftID returns the identifier the session's draft is saved under.
func (s *Session) DraftID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftID
}

// State returns the full externally visible session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Session) stateLocked() State {
	return State{
		SessionID:   s.id,
		DraftID:     s.draftID,
		Phase:       s.phase,
		PhaseData:   s.phaseData,
		CourseData:  s.courseData,
		Generation:  s.genState,
		FieldErrors: s.fieldErrors,
		Completed:   s.completed,
		CourseID:    s.courseID,
	}
}

func (s *Session) saveDraft(ctx context.Context, snapshot models.DraftSnapshot) error {
	s.mu.Lock()
	if s.completed {
		// The draft was consumed by finalization.
		s.mu.Unlock()
		return nil
	}
	draft := &models.Draft{
		ID:         s.draftID,
		OwnerID:    s.ownerID,
		Phase:      snapshot.Phase,
		PhaseData:  snapshot.PhaseData,
		CourseData: snapshot.CourseData,
		CreatedAt:  s.createdAt,
		UpdatedAt:  time.Now().UTC(),
	}
	s.mu.Unlock()
	return s.deps.Drafts.Save(ctx, draft)
}

// --- Subscribers --- //

// Subscribe registers a listener for state snapshots. The returned cancel
// function removes the listener and closes its channel. Slow listeners
// miss intermediate snapshots instead of blocking the session.
func (s *Session) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.listenerID
	s.listenerID++
	ch := make(chan State, 8)
	s.listeners[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.listeners[id]; ok {
			delete(s.listeners, id)
			close(c)
		}
	}
}

func (s *Session) notifyLocked() {
	state := s.stateLocked()
	for _, ch := range s.listeners {
		select {
		case ch <- state:
		default:
		}
	}
}

// --- Teardown --- //

// Close disposes the session: pending auto-saves are cancelled, in-flight
// generations are abandoned and subscribers are closed. Unless the course
// was finalized, the latest snapshot is flushed to the draft store first
// so the session stays resumable.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	flush := !s.completed
	for id, ch := range s.listeners {
		delete(s.listeners, id)
		close(ch)
	}
	s.mu.Unlock()

	var err error
	if flush {
		err = s.autosave.Flush(ctx)
	}
	s.autosave.Stop()
	s.cancel()
	s.logger.Info("Session closed")
	if err != nil {
		return &models.PersistenceError{Operation: "save", Err: err}
	}
	return nil
}
