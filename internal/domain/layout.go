package domain

import (
	"fmt"
	"strings"
)

// LayoutTemplate names a journal page template.
type LayoutTemplate string

const (
	LayoutMinimal  LayoutTemplate = "minimal"
	LayoutClassic  LayoutTemplate = "classic"
	LayoutStory    LayoutTemplate = "story"
	LayoutTodo     LayoutTemplate = "todo"
	LayoutArtistic LayoutTemplate = "artistic"
	// LayoutAuto lets the provider pick one of the concrete templates.
	LayoutAuto LayoutTemplate = "auto"
)

var layoutDescriptions = map[LayoutTemplate]string{
	LayoutMinimal:  "clean and elegant, suited to short entries",
	LayoutClassic:  "classic journal style, text first",
	LayoutStory:    "image-led story, text supports the pictures",
	LayoutTodo:     "puts the entry's todos in focus",
	LayoutArtistic: "artistic layout that breaks the grid",
	LayoutAuto:     "chosen automatically from the content",
}

// ConcreteLayouts lists the templates a provider may choose from in auto mode.
func ConcreteLayouts() []LayoutTemplate {
	return []LayoutTemplate{LayoutMinimal, LayoutClassic, LayoutStory, LayoutTodo, LayoutArtistic}
}

// ParseLayoutTemplate resolves a template name. Empty selects auto.
func ParseLayoutTemplate(s string) (LayoutTemplate, error) {
	t := LayoutTemplate(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return LayoutAuto, nil
	}
	if _, ok := layoutDescriptions[t]; !ok {
		return "", fmt.Errorf("domain: unknown layout template %q", s)
	}
	return t, nil
}

func (t LayoutTemplate) Description() string {
	return layoutDescriptions[t]
}
