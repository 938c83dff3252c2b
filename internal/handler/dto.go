package handler

import (
	"course-builder/internal/models"
	"course-builder/internal/wizard"
)

// APIError is the standardized error response body.
type APIError struct {
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// createSessionRequest starts a new wizard session, optionally resuming a
// saved draft.
type createSessionRequest struct {
	DraftID string `json:"draftId,omitempty"`
}

type basicInfoRequest struct {
	BasicInfo models.BasicInfo `json:"basicInfo"`
}

type objectivesRequest struct {
	Objectives []models.Objective `json:"objectives"`
}

// notesRequest updates the notes of one or more phases; absent fields are
// left untouched.
type notesRequest struct {
	OutlineNotes *string `json:"outlineNotes,omitempty"`
	ContentNotes *string `json:"contentNotes,omitempty"`
	ReviewNotes  *string `json:"reviewNotes,omitempty"`
}

type loadDraftRequest struct {
	DraftID string `json:"draftId"`
}

type suggestObjectivesRequest struct {
	BasicInfo models.BasicInfo `json:"basicInfo"`
}

type suggestObjectivesResponse struct {
	Objectives []models.Objective `json:"objectives"`
}

// advanceResponse is the session state after an advance, plus the
// finalized course when the advance completed the wizard.
type advanceResponse struct {
	State  wizard.State   `json:"state"`
	Course *models.Course `json:"course,omitempty"`
}

type draftListResponse struct {
	Drafts     []draftSummary `json:"drafts"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

type phaseListResponse struct {
	Phases []phaseInfo `json:"phases"`
}

// phaseInfo describes one authoring phase; the duration is a display hint.
type phaseInfo struct {
	Phase            models.Phase `json:"phase"`
	EstimatedSeconds int          `json:"estimatedSeconds,omitempty"`
}

// draftSummary is the list-view projection of a draft.
type draftSummary struct {
	ID        string       `json:"id"`
	Title     string       `json:"title"`
	Category  string       `json:"category"`
	Phase     models.Phase `json:"phase"`
	CreatedAt string       `json:"createdAt"`
	UpdatedAt string       `json:"updatedAt"`
}
