package ai

import (
	"fmt"
	"strings"
	"time"

	"mindlog-agent/internal/domain"
)

// Locale selects the language providers answer in and the labels embedded
// in prompts.
type Locale string

const (
	LocaleChinese Locale = "zh-CN"
	LocaleEnglish Locale = "en-US"
)

// ParseLocale resolves a locale tag. Empty selects Chinese.
func ParseLocale(s string) (Locale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "zh", "zh-cn", "zh_cn":
		return LocaleChinese, nil
	case "en", "en-us", "en_us":
		return LocaleEnglish, nil
	}
	return "", fmt.Errorf("ai: unsupported locale %q", s)
}

type localeText struct {
	language  string
	low       string
	medium    string
	high      string
	weekly    string
	monthly   string
	dateFmt   string
	noContent string
	noTags    string
}

var localeTexts = map[Locale]localeText{
	LocaleChinese: {
		language:  "Simplified Chinese",
		low:       "低",
		medium:    "中",
		high:      "高",
		weekly:    "周报",
		monthly:   "月报",
		dateFmt:   "2006年1月2日",
		noContent: "无内容",
		noTags:    "无",
	},
	LocaleEnglish: {
		language:  "English",
		low:       "low",
		medium:    "medium",
		high:      "high",
		weekly:    "weekly review",
		monthly:   "monthly review",
		dateFmt:   "Jan 2, 2006",
		noContent: "no content",
		noTags:    "none",
	},
}

const defaultMoodGlyph = "😐"

// Prompt is the provider-agnostic instruction pair for one call.
type Prompt struct {
	System string
	Text   string
}

// PromptBuilder composes instructions for each operation. It holds no
// mutable state.
type PromptBuilder struct {
	locale Locale
}

// NewPromptBuilder returns a builder for locale. Unknown locales fall back
// to Chinese.
func NewPromptBuilder(locale Locale) PromptBuilder {
	if _, ok := localeTexts[locale]; !ok {
		locale = LocaleChinese
	}
	return PromptBuilder{locale: locale}
}

func (b PromptBuilder) Locale() Locale { return b.locale }

func (b PromptBuilder) text() localeText {
	if t, ok := localeTexts[b.locale]; ok {
		return t
	}
	return localeTexts[LocaleChinese]
}

func (b PromptBuilder) languageRule() string {
	return fmt.Sprintf("Write every human-readable value in %s.", b.text().language)
}

// Analyze builds the extraction prompt for one journal entry.
func (b PromptBuilder) Analyze(text string) Prompt {
	t := b.text()
	return Prompt{
		System: "You are the AI assistant of the MindLog journal app. You extract structured data from diary entries and reply with JSON only.",
		Text: strings.Join([]string{
			"Analyze the following journal entry and extract its key information.",
			"",
			"Requirements:",
			"1) tags: 3-5 short tags for categorizing and searching the entry.",
			"2) summary: one or two sentences capturing the core of the entry.",
			"3) sentimentScore: a number from 0 to 1 where 0 is most negative, 0.5 is neutral and 1 is most positive.",
			fmt.Sprintf("4) todos: explicit tasks, each with a title and a priority of %q, %q or %q, plus dueDate (YYYY-MM-DD) when stated.", t.low, t.medium, t.high),
			"5) shoppingList: items the writer needs to buy.",
			"6) schedule: concrete appointments or events, with ISO 8601 start and end times when stated.",
			"7) " + b.languageRule(),
			"",
			"Journal entry:",
			text,
			"",
			"Return exactly this JSON shape and nothing else:",
			`{`,
			`  "tags": ["tag1", "tag2", "tag3"],`,
			`  "summary": "summary",`,
			`  "sentimentScore": 0.7,`,
			fmt.Sprintf(`  "todos": [{"title": "task", "priority": %q, "dueDate": "2026-01-31"}],`, t.high),
			`  "shoppingList": [{"name": "item", "quantity": "amount", "category": "category"}],`,
			`  "schedule": [{"title": "event", "startDate": "2026-01-31T09:00:00Z", "endDate": "2026-01-31T10:00:00Z", "location": "place", "notes": "notes"}]`,
			`}`,
		}, "\n"),
	}
}

// Chat returns the lead instruction for a conversation in personality's
// voice. The message itself travels unchanged as the final user turn.
func (b PromptBuilder) Chat(personality domain.Personality) string {
	return personality.Instruction() + "\n" + b.languageRule()
}

// Report builds the review prompt over entries between start and end.
func (b PromptBuilder) Report(entries []domain.JournalEntry, start, end time.Time, kind domain.ReviewKind) Prompt {
	t := b.text()
	label := t.weekly
	if kind == domain.ReviewMonthly {
		label = t.monthly
	}
	return Prompt{
		System: "You are the review assistant of the MindLog journal app. You write retrospectives over diary entries and reply with JSON only.",
		Text: strings.Join([]string{
			fmt.Sprintf("Write a %s (%s) based on the journal entries below.", label, kind),
			"",
			fmt.Sprintf("Period: %s - %s", start.Format(t.dateFmt), end.Format(t.dateFmt)),
			fmt.Sprintf("Number of entries: %d", len(entries)),
			"",
			"Entries:",
			b.digest(entries),
			"Return exactly this JSON shape:",
			`{`,
			fmt.Sprintf(`  "type": %q,`, kind),
			fmt.Sprintf(`  "startDate": %q,`, start.UTC().Format(time.RFC3339)),
			fmt.Sprintf(`  "endDate": %q,`, end.UTC().Format(time.RFC3339)),
			`  "summary": "overall summary of the period's main themes and changes",`,
			`  "emotionCurve": [{"date": "2026-01-31", "score": 0.7}],`,
			`  "keyEvents": ["event1", "event2", "event3"],`,
			`  "growthInsights": ["insight1", "insight2"],`,
			`  "todoCompletion": {"total": 10, "completed": 7, "completionRate": 0.7, "insights": ["todo analysis"]},`,
			`  "nextPeriodSuggestions": ["suggestion1", "suggestion2", "suggestion3"]`,
			`}`,
			"",
			"Rules:",
			"1) emotionCurve has one point per day in the period, dated in ISO 8601 (YYYY-MM-DD), with a score from 0 to 1.",
			fmt.Sprintf("2) keyEvents has at most %d items.", domain.MaxKeyEvents),
			"3) todoCompletion is your estimate from the entries.",
			"4) " + b.languageRule(),
		}, "\n"),
	}
}

func (b PromptBuilder) digest(entries []domain.JournalEntry) string {
	t := b.text()
	var sb strings.Builder
	for i, e := range entries {
		mood := e.MoodGlyph
		if mood == "" {
			mood = defaultMoodGlyph
		}
		content := e.Content
		if content == "" {
			content = t.noContent
		}
		tags := t.noTags
		if len(e.Tags) > 0 {
			tags = strings.Join(e.Tags, ", ")
		}
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, e.Title, e.Date.Format(t.dateFmt))
		fmt.Fprintf(&sb, "   mood: %s\n", mood)
		fmt.Fprintf(&sb, "   content: %s\n", content)
		fmt.Fprintf(&sb, "   tags: %s\n\n", tags)
	}
	return sb.String()
}

// Layout builds the page layout prompt. LayoutAuto asks the provider to
// choose among the concrete templates.
func (b PromptBuilder) Layout(content string, template domain.LayoutTemplate, imageCount int) Prompt {
	lines := []string{}
	name := string(template)
	if template == domain.LayoutAuto {
		lines = append(lines,
			"Choose the most suitable layout template for the journal entry below and generate its layout configuration.",
			"",
			"Journal entry: "+content,
			fmt.Sprintf("Image count: %d", imageCount),
			"",
			"Available templates:",
		)
		for _, l := range domain.ConcreteLayouts() {
			lines = append(lines, fmt.Sprintf("- %s: %s", l, l.Description()))
		}
		lines = append(lines, "")
		name = "chosen template"
	} else {
		lines = append(lines,
			fmt.Sprintf("Generate a %q layout configuration for the journal entry below.", template),
			"",
			"Journal entry: "+content,
			fmt.Sprintf("Image count: %d", imageCount),
			"",
		)
	}
	lines = append(lines,
		"Return the layout configuration as JSON:",
		`{`,
		fmt.Sprintf(`  "template": %q,`, name),
		`  "sections": [`,
		`    {`,
		`      "type": "title/content/image/tags",`,
		`      "frame": {"x": 0.0, "y": 0.0, "width": 1.0, "height": 0.1},`,
		`      "style": {"fontSize": 28, "fontWeight": "bold", "alignment": "center"}`,
		`    }`,
		`  ]`,
		`}`,
		"",
		"frame uses relative coordinates from 0 to 1. Use 3-6 sections.",
	)
	return Prompt{
		System: "You are the layout designer of the MindLog journal app. You reply with JSON only.",
		Text:   strings.Join(lines, "\n"),
	}
}
