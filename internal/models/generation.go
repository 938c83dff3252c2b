package models

// GenerationState holds the transient flags of an in-flight generation
// call. It is reset at the start of every call, cleared on success and
// preserved as an error on failure.
type GenerationState struct {
	IsGenerating bool   `json:"isGenerating"`
	Progress     int    `json:"progress"` // 0-100
	Status       string `json:"status,omitempty"`
	Error        string `json:"error,omitempty"`
}
