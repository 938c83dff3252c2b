package generation

import (
	"fmt"
	"time"

	"course-builder/internal/models"
)

// Canned payloads served in mock mode and by the dev fallback. Shapes match
// the real operation results so downstream phases work unchanged.

func mockOutline(info models.BasicInfo, objectives []models.Objective) *models.CourseOutline {
	title := info.Title
	if title == "" {
		title = "Untitled Course"
	}
	outline := &models.CourseOutline{GeneratedAt: time.Now().UTC()}
	moduleTitles := []string{
		fmt.Sprintf("Introduction to %s", title),
		fmt.Sprintf("Core Concepts of %s", title),
		fmt.Sprintf("Applying %s in Practice", title),
	}
	for i, mt := range moduleTitles {
		outline.Modules = append(outline.Modules, models.ModuleOutline{
			Index:   i,
			Title:   mt,
			Summary: fmt.Sprintf("Module %d covers %s.", i+1, mt),
			Lessons: []string{
				fmt.Sprintf("Lesson %d.1: Overview", i+1),
				fmt.Sprintf("Lesson %d.2: Key ideas", i+1),
				fmt.Sprintf("Lesson %d.3: Exercises", i+1),
			},
		})
	}
	// One extra module per objective keeps the mock outline proportional to
	// what the instructor asked for.
	for i, obj := range objectives {
		idx := len(moduleTitles) + i
		outline.Modules = append(outline.Modules, models.ModuleOutline{
			Index:   idx,
			Title:   fmt.Sprintf("Deep Dive %d", i+1),
			Summary: obj.Text,
			Lessons: []string{
				fmt.Sprintf("Lesson %d.1: Walkthrough", idx+1),
				fmt.Sprintf("Lesson %d.2: Practice", idx+1),
			},
		})
	}
	return outline
}

func mockModuleContent(module models.ModuleOutline) *models.ModuleContent {
	content := &models.ModuleContent{
		ModuleIndex: module.Index,
		Title:       module.Title,
	}
	for _, lesson := range module.Lessons {
		content.Sections = append(content.Sections, models.ContentSection{
			Heading: lesson,
			Body: fmt.Sprintf("This section walks through %q. It introduces the main idea, "+
				"works a short example, and closes with a check-your-understanding question.", lesson),
		})
	}
	if len(content.Sections) == 0 {
		content.Sections = append(content.Sections, models.ContentSection{
			Heading: module.Title,
			Body:    fmt.Sprintf("An overview of %s.", module.Title),
		})
	}
	return content
}

func mockObjectives(info models.BasicInfo) []models.Objective {
	subject := info.Title
	if subject == "" {
		subject = "the subject"
	}
	texts := []string{
		fmt.Sprintf("Students will be able to define the key concepts of %s.", subject),
		fmt.Sprintf("Students will be able to apply %s techniques to a practical problem.", subject),
		fmt.Sprintf("Students will be able to evaluate common pitfalls in %s.", subject),
	}
	objectives := make([]models.Objective, 0, len(texts))
	for i, t := range texts {
		objectives = append(objectives, models.Objective{
			ID:   fmt.Sprintf("suggested-%d", i+1),
			Text: t,
		})
	}
	return objectives
}

func mockEnhancement(data models.CourseData) *models.CourseData {
	enhanced := data
	enhanced.Modules = make([]models.ModuleContent, len(data.Modules))
	copy(enhanced.Modules, data.Modules)
	for i := range enhanced.Modules {
		sections := make([]models.ContentSection, len(enhanced.Modules[i].Sections))
		copy(sections, enhanced.Modules[i].Sections)
		for j := range sections {
			sections[j].Body = sections[j].Body + " Key takeaways are summarized at the end of the section."
		}
		enhanced.Modules[i].Sections = sections
	}
	enhanced.Enhanced = true
	return &enhanced
}
