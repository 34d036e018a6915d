package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxKeyEvents caps the key events kept in a review report.
const MaxKeyEvents = 5

// ReviewKind is the span a review report covers.
type ReviewKind string

const (
	ReviewWeekly  ReviewKind = "weekly"
	ReviewMonthly ReviewKind = "monthly"
)

// ParseReviewKind resolves a report kind. Empty selects weekly.
func ParseReviewKind(s string) (ReviewKind, error) {
	switch ReviewKind(strings.ToLower(strings.TrimSpace(s))) {
	case "", ReviewWeekly:
		return ReviewWeekly, nil
	case ReviewMonthly:
		return ReviewMonthly, nil
	}
	return "", fmt.Errorf("domain: unknown review kind %q", s)
}

// PeriodEnding returns the default period of this kind that ends with ref's
// calendar day: the last 7 days for weekly, the last calendar month for monthly.
func (k ReviewKind) PeriodEnding(ref time.Time) (start, end time.Time) {
	day := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	end = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
	if k == ReviewMonthly {
		return day.AddDate(0, -1, 1), end
	}
	return day.AddDate(0, 0, -6), end
}

// EmotionPoint is one day's sentiment in a report curve.
type EmotionPoint struct {
	ID    string    `json:"id"`
	Date  time.Time `json:"date"`
	Score float64   `json:"score"`
}

// TodoStats summarizes todo completion over a report period.
type TodoStats struct {
	Total          int      `json:"total"`
	Completed      int      `json:"completed"`
	CompletionRate float64  `json:"completionRate"`
	Insights       []string `json:"insights"`
}

// ReviewReport is a weekly or monthly retrospective over journal entries.
type ReviewReport struct {
	Kind           ReviewKind     `json:"kind"`
	PeriodStart    time.Time      `json:"periodStart"`
	PeriodEnd      time.Time      `json:"periodEnd"`
	Summary        string         `json:"summary"`
	EmotionCurve   []EmotionPoint `json:"emotionCurve"`
	KeyEvents      []string       `json:"keyEvents"`
	GrowthInsights []string       `json:"growthInsights"`
	TodoStats      TodoStats      `json:"todoStats"`
	Suggestions    []string       `json:"suggestions"`
}
