package models

import (
	"time"

	"github.com/google/uuid"
)

// BasicInfo is the instructor-entered course identity, owned by the
// basic-info phase.
type BasicInfo struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category" validate:"required"`
	Level       string `json:"level,omitempty"`
}

// Objective is a single learning objective, owned by the
// learning-objectives phase.
type Objective struct {
	ID   string `json:"id"`
	Text string `json:"text" validate:"required"`
}

// PhaseData holds the per-phase form records of a wizard session. It is a
// closed structure keyed by phase: each phase mutates only its own section.
type PhaseData struct {
	BasicInfo    BasicInfo   `json:"basicInfo"`
	Objectives   []Objective `json:"objectives"`
	OutlineNotes string      `json:"outlineNotes,omitempty"`
	ContentNotes string      `json:"contentNotes,omitempty"`
	ReviewNotes  string      `json:"reviewNotes,omitempty"`
}

// ModuleOutline is one planned module of a generated course outline.
type ModuleOutline struct {
	Index   int      `json:"index"`
	Title   string   `json:"title"`
	Summary string   `json:"summary"`
	Lessons []string `json:"lessons"`
}

// CourseOutline is the outline-generation result seeded from basic info
// and objectives.
type CourseOutline struct {
	Modules     []ModuleOutline `json:"modules"`
	GeneratedAt time.Time       `json:"generatedAt"`
}

// ContentSection is one block of generated lesson material.
type ContentSection struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// ModuleContent is the generated material for one outline module.
type ModuleContent struct {
	ModuleIndex int              `json:"moduleIndex"`
	Title       string           `json:"title"`
	Sections    []ContentSection `json:"sections"`
}

// CourseData accumulates generation results over the wizard session.
// It is written only as a side effect of successful generation or of
// explicit completion.
type CourseData struct {
	Outline  *CourseOutline  `json:"outline,omitempty"`
	Modules  []ModuleContent `json:"modules,omitempty"`
	Enhanced bool            `json:"enhanced"`
	Complete bool            `json:"complete"`
}

// ModuleByIndex returns the generated content for the given outline module,
// or nil when that module has no content yet.
func (d *CourseData) ModuleByIndex(idx int) *ModuleContent {
	for i := range d.Modules {
		if d.Modules[i].ModuleIndex == idx {
			return &d.Modules[i]
		}
	}
	return nil
}

// Course is a finalized, persisted course entity.
type Course struct {
	ID          uuid.UUID  `json:"id"`
	OwnerID     uuid.UUID  `json:"ownerId"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Data        CourseData `json:"data"`
	CreatedAt   time.Time  `json:"createdAt"`
}
