package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"course-builder/internal/generation"
	"course-builder/internal/models"
	"course-builder/internal/repository"
	"course-builder/internal/service"
	"course-builder/internal/wizard"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ownerIDHeader carries the opaque caller-supplied owner identity.
// Authentication itself is handled upstream and is out of scope here.
const ownerIDHeader = "X-Owner-ID"

// BuilderHandler serves the course builder HTTP API.
type BuilderHandler struct {
	sessions  *wizard.Manager
	generator generation.Client
	drafts    repository.DraftRepository
	courses   service.CourseService
	// phaseHints maps phase identifiers to estimated durations in seconds.
	// Display-only, never part of transition semantics.
	phaseHints map[string]int
	logger     *zap.Logger
}

// NewBuilderHandler creates a new BuilderHandler.
func NewBuilderHandler(
	sessions *wizard.Manager,
	generator generation.Client,
	drafts repository.DraftRepository,
	courses service.CourseService,
	phaseHints map[string]int,
	logger *zap.Logger,
) *BuilderHandler {
	return &BuilderHandler{
		sessions:   sessions,
		generator:  generator,
		drafts:     drafts,
		courses:    courses,
		phaseHints: phaseHints,
		logger:     logger.Named("BuilderHandler"),
	}
}

// RegisterRoutes registers the course builder routes.
func (h *BuilderHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.healthz)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api")

	sessionsGroup := api.Group("/wizard/sessions")
	{
		sessionsGroup.POST("", h.createSession)
		sessionsGroup.GET("/:id", h.getSession)
		sessionsGroup.DELETE("/:id", h.closeSession)
		sessionsGroup.PUT("/:id/basic-info", h.putBasicInfo)
		sessionsGroup.PUT("/:id/objectives", h.putObjectives)
		sessionsGroup.PUT("/:id/notes", h.putNotes)
		sessionsGroup.POST("/:id/advance", h.advance)
		sessionsGroup.POST("/:id/retreat", h.retreat)
		sessionsGroup.POST("/:id/load-draft", h.loadDraft)
		sessionsGroup.GET("/:id/ws", h.streamSession)
	}

	api.GET("/wizard/phases", h.listPhases)
	api.POST("/wizard/objectives/suggest", h.suggestObjectives)

	draftsGroup := api.Group("/drafts")
	{
		draftsGroup.GET("", h.listDrafts)
		draftsGroup.GET("/:id", h.getDraft)
		draftsGroup.DELETE("/:id", h.deleteDraft)
	}

	api.GET("/courses/:id", h.getCourse)
}

func (h *BuilderHandler) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// listPhases returns the authoring sequence with per-phase duration hints.
func (h *BuilderHandler) listPhases(c echo.Context) error {
	phases := make([]phaseInfo, 0, len(models.PhaseSequence))
	for _, phase := range models.PhaseSequence {
		phases = append(phases, phaseInfo{
			Phase:            phase,
			EstimatedSeconds: h.phaseHints[string(phase)],
		})
	}
	return c.JSON(http.StatusOK, phaseListResponse{Phases: phases})
}

// --- Session lifecycle --- //

func (h *BuilderHandler) createSession(c echo.Context) error {
	ownerID, err := ownerIDFromRequest(c)
	if err != nil {
		return err
	}

	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}

	session := h.sessions.Create(ownerID)
	if req.DraftID != "" {
		draftID, err := uuid.Parse(req.DraftID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, APIError{Message: "invalid draft ID"})
		}
		if err := session.LoadDraft(c.Request().Context(), draftID); err != nil {
			// Restore failure leaves the fresh session at its initial phase.
			h.logger.Warn("Session created without draft restore",
				zap.String("sessionID", session.ID().String()),
				zap.String("draftID", req.DraftID),
				zap.Error(err))
		}
	}
	return c.JSON(http.StatusCreated, session.State())
}

func (h *BuilderHandler) getSession(c echo.Context) error {
	session, err := h.lookupSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, session.State())
}

func (h *BuilderHandler) closeSession(c echo.Context) error {
	session, err := h.lookupSession(c)
	if err != nil {
		return err
	}
	if err := h.sessions.Close(c.Request().Context(), session.ID()); err != nil {
		return h.serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Phase data --- //

func (h *BuilderHandler) putBasicInfo(c echo.Context) error {
	session, err := h.lookupSession(c)
	if err != nil {
		return err
	}
	var req basicInfoRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}
	if err := session.SetBasicInfo(req.BasicInfo); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, session.State())
}

func (h *BuilderHandler) putObjectives(c echo.Context) error {
	session, err := h.lookupSession(c)
	if err != nil {
		return err
	}
	var req objectivesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}
	if err := session.SetObjectives(req.Objectives); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, session.State())
}

func (h *BuilderHandler) putNotes(c echo.Context) error {
	session, err := h.lookupSession(c)
	if err != nil {
		return err
	}
	var req notesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}
	if req.OutlineNotes != nil {
		if err := session.SetOutlineNotes(*req.OutlineNotes); err != nil {
			return h.serviceError(c, err)
		}
	}
	if req.ContentNotes != nil {
		if err := session.SetContentNotes(*req.ContentNotes); err != nil {
			return h.serviceError(c, err)
		}
	}
	if req.ReviewNotes != nil {
		if err := session.SetReviewNotes(*req.ReviewNotes); err != nil {
			return h.serviceError(c, err)
		}
	}
	return c.JSON(http.StatusOK, session.State())
}

// --- Transitions --- //

func (h *BuilderHandler) advance(c echo.Context) error {
	session, err := h.lookupSession(c)
	if err != nil {
		return err
	}
	course, err := session.Advance(c.Request().Context())
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, advanceResponse{State: session.State(), Course: course})
}

func (h *BuilderHandler) retreat(c echo.Context) error {
	session, err := h.lookupSession(c)
	if err != nil {
		return err
	}
	if err := session.Retreat(); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, session.State())
}

func (h *BuilderHandler) loadDraft(c echo.Context) error {
	session, err := h.lookupSession(c)
	if err != nil {
		return err
	}
	var req loadDraftRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}
	draftID, err := uuid.Parse(req.DraftID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid draft ID"})
	}
	if err := session.LoadDraft(c.Request().Context(), draftID); err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, session.State())
}

// --- Suggestions --- //

func (h *BuilderHandler) suggestObjectives(c echo.Context) error {
	if _, err := ownerIDFromRequest(c); err != nil {
		return err
	}
	var req suggestObjectivesRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid request body"})
	}
	objectives, err := h.generator.SuggestObjectives(c.Request().Context(), req.BasicInfo)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, suggestObjectivesResponse{Objectives: objectives})
}

// --- Drafts --- //

func (h *BuilderHandler) listDrafts(c echo.Context) error {
	ownerID, err := ownerIDFromRequest(c)
	if err != nil {
		return err
	}
	limit := 10
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 || parsed > 100 {
			return c.JSON(http.StatusBadRequest, APIError{Message: "invalid limit parameter"})
		}
		limit = parsed
	}
	cursor := c.QueryParam("cursor")

	drafts, nextCursor, err := h.drafts.ListByOwner(c.Request().Context(), ownerID, cursor, limit)
	if err != nil {
		return h.serviceError(c, err)
	}

	resp := draftListResponse{Drafts: make([]draftSummary, 0, len(drafts)), NextCursor: nextCursor}
	for _, draft := range drafts {
		resp.Drafts = append(resp.Drafts, draftSummary{
			ID:        draft.ID.String(),
			Title:     draft.PhaseData.BasicInfo.Title,
			Category:  draft.PhaseData.BasicInfo.Category,
			Phase:     draft.Phase,
			CreatedAt: draft.CreatedAt.Format(time.RFC3339),
			UpdatedAt: draft.UpdatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *BuilderHandler) getDraft(c echo.Context) error {
	ownerID, err := ownerIDFromRequest(c)
	if err != nil {
		return err
	}
	draftID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid draft ID"})
	}
	draft, err := h.drafts.GetByID(c.Request().Context(), draftID)
	if err != nil {
		return h.serviceError(c, err)
	}
	if draft.OwnerID != ownerID {
		return c.JSON(http.StatusNotFound, APIError{Message: "draft not found"})
	}
	return c.JSON(http.StatusOK, draft)
}

func (h *BuilderHandler) deleteDraft(c echo.Context) error {
	ownerID, err := ownerIDFromRequest(c)
	if err != nil {
		return err
	}
	draftID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid draft ID"})
	}
	if err := h.drafts.Delete(c.Request().Context(), draftID, ownerID); err != nil {
		return h.serviceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Courses --- //

func (h *BuilderHandler) getCourse(c echo.Context) error {
	if _, err := ownerIDFromRequest(c); err != nil {
		return err
	}
	courseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid course ID"})
	}
	course, err := h.courses.GetCourse(c.Request().Context(), courseID)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(http.StatusOK, course)
}

// --- Helpers --- //

// lookupSession resolves the :id route parameter to a session owned by the
// caller. An existing session owned by someone else is reported as not
// found, never as forbidden. Failures return an *echo.HTTPError for the
// caller to propagate; the response is rendered by Echo's error handler.
func (h *BuilderHandler) lookupSession(c echo.Context) (*wizard.Session, error) {
	ownerID, err := ownerIDFromRequest(c)
	if err != nil {
		return nil, err
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid session ID")
	}
	session, err := h.sessions.Get(sessionID)
	if err != nil || session.OwnerID() != ownerID {
		return nil, echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return session, nil
}

func ownerIDFromRequest(c echo.Context) (uuid.UUID, error) {
	raw := c.Request().Header.Get(ownerIDHeader)
	if raw == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "missing "+ownerIDHeader+" header")
	}
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+ownerIDHeader+" header")
	}
	return ownerID, nil
}

// serviceError maps domain errors onto HTTP responses.
func (h *BuilderHandler) serviceError(c echo.Context, err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusUnprocessableEntity, APIError{Message: "validation failed", Fields: verr.Fields})
	}
	var gerr *models.GenerationError
	if errors.As(err, &gerr) {
		return c.JSON(http.StatusBadGateway, APIError{Message: gerr.Error()})
	}

	switch {
	case errors.Is(err, models.ErrGenerationInProgress),
		errors.Is(err, models.ErrCourseNotComplete):
		return c.JSON(http.StatusConflict, APIError{Message: err.Error()})
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrDraftNotFound),
		errors.Is(err, models.ErrCourseNotFound):
		return c.JSON(http.StatusNotFound, APIError{Message: err.Error()})
	case errors.Is(err, models.ErrSessionClosed):
		return c.JSON(http.StatusGone, APIError{Message: err.Error()})
	case errors.Is(err, repository.ErrInvalidCursor), errors.Is(err, models.ErrInvalidCursor):
		return c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	}

	h.logger.Error("Unhandled service error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, APIError{Message: "internal server error"})
}
