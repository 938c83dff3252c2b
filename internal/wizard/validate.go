package wizard

import (
	"errors"
	"fmt"
	"strings"

	"course-builder/internal/models"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validatePhase checks whether the current phase's data allows advancing.
// It returns nil on success, otherwise a ValidationError with one entry per
// offending field.
func validatePhase(phase models.Phase, pd models.PhaseData, cd models.CourseData) *models.ValidationError {
	fields := make(map[string]string)

	switch phase {
	case models.PhaseBasicInfo:
		if err := validate.Struct(pd.BasicInfo); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					name := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
					fields[name] = fmt.Sprintf("%s is required", name)
				}
			} else {
				fields["basicInfo"] = "basic info is invalid"
			}
		}
	case models.PhaseLearningObjectives:
		if len(pd.Objectives) == 0 {
			fields["objectives"] = "at least one learning objective is required"
		}
		for i, obj := range pd.Objectives {
			if strings.TrimSpace(obj.Text) == "" {
				fields[fmt.Sprintf("objectives[%d]", i)] = "objective text must not be empty"
			}
		}
	case models.PhaseOutlineGeneration:
		if cd.Outline == nil || len(cd.Outline.Modules) == 0 {
			fields["outline"] = "a generated course outline is required"
		}
	case models.PhaseContentCreation:
		if len(cd.Modules) == 0 {
			fields["modules"] = "at least one module with generated content is required"
		}
	case models.PhaseReviewFinalize:
		if !cd.Complete {
			fields["complete"] = "course data is not marked complete"
		}
	}

	if len(fields) == 0 {
		return nil
	}
	return &models.ValidationError{Phase: phase, Fields: fields}
}
