package domain

import (
	"strings"
	"time"
)

// MaxTags caps the number of tags kept from an analysis.
const MaxTags = 5

// Priority is the urgency of an extracted todo.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority maps a provider label in either English or Chinese to a
// Priority. Unknown and empty labels map to medium.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "低", "low":
		return PriorityLow
	case "高", "high", "urgent":
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// Todo is a task extracted from journal text.
type Todo struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Priority Priority   `json:"priority"`
	DueDate  *time.Time `json:"dueDate,omitempty"`
}

// ShoppingItem is something the writer intends to buy.
type ShoppingItem struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Quantity  *string `json:"quantity,omitempty"`
	Category  *string `json:"category,omitempty"`
	Purchased bool    `json:"purchased"`
}

// ScheduleItem is an appointment or event mentioned in the text.
type ScheduleItem struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
	Location *string    `json:"location,omitempty"`
	Notes    *string    `json:"notes,omitempty"`
}

// AnalysisResult is the structured reading of one journal entry.
// Slice fields are never nil once produced by the normalizer.
type AnalysisResult struct {
	Tags           []string       `json:"tags"`
	Summary        *string        `json:"summary,omitempty"`
	SentimentScore *float64       `json:"sentimentScore,omitempty"`
	Todos          []Todo         `json:"todos"`
	ShoppingItems  []ShoppingItem `json:"shoppingItems"`
	ScheduleItems  []ScheduleItem `json:"scheduleItems"`
}

// ScoreInRange reports whether a score lies in [0, 1].
// Provider output is passed through unclamped; callers decide what to do
// with values outside the range.
func ScoreInRange(v float64) bool {
	return v >= 0 && v <= 1
}
