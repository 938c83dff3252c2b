package generation

import (
	"encoding/json"
	"fmt"

	"course-builder/internal/models"

	"github.com/pkoukk/tiktoken-go"
)

// Operation names one logical generation request kind.
type Operation string

const (
	OpOutline              Operation = "outline"
	OpModuleContent        Operation = "module_content"
	OpObjectiveSuggestions Operation = "objective_suggestions"
	OpContentEnhancement   Operation = "content_enhancement"
)

// System prompts per operation. Every prompt demands a bare JSON object so
// the response can be unmarshalled directly.
var systemPrompts = map[Operation]string{
	OpOutline: `You are a curriculum designer. Given course basic info and learning objectives as JSON, ` +
		`produce a course outline. Respond with only a JSON object of the shape ` +
		`{"modules":[{"index":0,"title":"...","summary":"...","lessons":["..."]}]}. ` +
		`Create between 3 and 8 modules, each with 2 to 6 lessons. No prose, no markdown fences.`,
	OpModuleContent: `You are a course author. Given course context and one outline module as JSON, ` +
		`write the teaching material for that module. Respond with only a JSON object of the shape ` +
		`{"moduleIndex":0,"title":"...","sections":[{"heading":"...","body":"..."}]}. ` +
		`Write 2 to 5 sections of 2-4 paragraphs each. No prose outside the JSON.`,
	OpObjectiveSuggestions: `You are an instructional designer. Given course basic info as JSON, suggest ` +
		`measurable learning objectives. Respond with only a JSON object of the shape ` +
		`{"objectives":[{"text":"Students will be able to ..."}]}. Suggest 3 to 6 objectives.`,
	OpContentEnhancement: `You are an editor. Given a complete course (outline and module content) as JSON, ` +
		`improve clarity, transitions and consistency without changing structure. Respond with only a ` +
		`JSON object of the same shape as the input: {"outline":{...},"modules":[...]}.`,
}

func systemPrompt(op Operation) string { return systemPrompts[op] }

// outlinePayload seeds outline generation with basic info plus objectives.
type outlinePayload struct {
	BasicInfo  models.BasicInfo   `json:"basicInfo"`
	Objectives []models.Objective `json:"objectives"`
}

// modulePayload carries the full course context plus the one module to write.
type modulePayload struct {
	BasicInfo  models.BasicInfo     `json:"basicInfo"`
	Objectives []models.Objective   `json:"objectives"`
	Outline    models.CourseOutline `json:"outline"`
	Module     models.ModuleOutline `json:"module"`
}

// enhancementPayload is the full assembled course data.
type enhancementPayload struct {
	Outline *models.CourseOutline  `json:"outline"`
	Modules []models.ModuleContent `json:"modules"`
}

func marshalPayload(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generation payload: %w", err)
	}
	return string(raw), nil
}

// trimToTokenBudget truncates text to at most budget tokens for the given
// model. Unknown models fall back to the cl100k_base encoding.
func trimToTokenBudget(text, model string, budget int) string {
	if budget <= 0 {
		return text
	}
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tke, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return text
		}
	}
	tokens := tke.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text
	}
	return tke.Decode(tokens[:budget])
}
