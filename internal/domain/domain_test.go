package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	cases := []struct {
		in   string
		want Priority
	}{
		{"高", PriorityHigh},
		{"High", PriorityHigh},
		{"中", PriorityMedium},
		{"medium", PriorityMedium},
		{"低", PriorityLow},
		{" low ", PriorityLow},
		{"", PriorityMedium},
		{"someday", PriorityMedium},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ParsePriority(tc.in), "in=%q", tc.in)
	}
}

func TestRecentTurns(t *testing.T) {
	history := make([]ChatTurn, 15)
	for i := range history {
		history[i] = ChatTurn{Content: string(rune('a' + i))}
	}

	recent := RecentTurns(history, MaxHistoryTurns)
	require.Len(t, recent, 10)
	require.Equal(t, "f", recent[0].Content)
	require.Equal(t, "o", recent[9].Content)

	require.Len(t, RecentTurns(history[:3], MaxHistoryTurns), 3)
	require.Nil(t, RecentTurns(history, 0))
}

func TestReviewKind_PeriodEnding(t *testing.T) {
	ref := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

	start, end := ReviewWeekly.PeriodEnding(ref)
	require.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 3, 15, 23, 59, 59, 999999999, time.UTC), end)

	start, end = ReviewMonthly.PeriodEnding(ref)
	require.Equal(t, time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2026, 3, 15, 23, 59, 59, 999999999, time.UTC), end)
}

func TestParseEnums(t *testing.T) {
	k, err := ParseReviewKind("")
	require.NoError(t, err)
	require.Equal(t, ReviewWeekly, k)
	_, err = ParseReviewKind("yearly")
	require.Error(t, err)

	p, err := ParsePersonality("Concise")
	require.NoError(t, err)
	require.Equal(t, PersonalityConcise, p)
	require.Equal(t, "bolt.fill", p.Icon())
	require.NotEmpty(t, p.Instruction())
	_, err = ParsePersonality("sarcastic")
	require.Error(t, err)

	tmpl, err := ParseLayoutTemplate("")
	require.NoError(t, err)
	require.Equal(t, LayoutAuto, tmpl)
	_, err = ParseLayoutTemplate("brutalist")
	require.Error(t, err)
}

func TestScoreInRange(t *testing.T) {
	require.True(t, ScoreInRange(0))
	require.True(t, ScoreInRange(1))
	require.False(t, ScoreInRange(1.2))
	require.False(t, ScoreInRange(-0.1))
}
