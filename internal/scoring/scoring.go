// Package scoring holds the pure timing and grading rules of a quiz attempt.
package scoring

import (
	"time"

	"github.com/google/uuid"
)

// AnswerKey maps a question to the set of its correct answer ids.
type AnswerKey map[uuid.UUID][]uuid.UUID

// Selections maps a question to the answer ids a student picked.
type Selections map[uuid.UUID][]uuid.UUID

// Result is the outcome of grading one attempt.
type Result struct {
	Score          int
	TotalQuestions int
	Correct        map[uuid.UUID]bool
}

// Grade scores selections against key. A question counts as correct only when
// the selected set equals the correct set exactly; questions missing from key
// are ignored.
func Grade(key AnswerKey, selections Selections) Result {
	res := Result{
		TotalQuestions: len(key),
		Correct:        make(map[uuid.UUID]bool, len(key)),
	}
	for qID, correct := range key {
		ok := sameSet(correct, selections[qID])
		res.Correct[qID] = ok
		if ok {
			res.Score++
		}
	}
	return res
}

func sameSet(want, got []uuid.UUID) bool {
	if len(want) == 0 {
		return false
	}
	wantSet := make(map[uuid.UUID]struct{}, len(want))
	for _, id := range want {
		wantSet[id] = struct{}{}
	}
	gotSet := make(map[uuid.UUID]struct{}, len(got))
	for _, id := range got {
		if _, ok := wantSet[id]; !ok {
			return false
		}
		gotSet[id] = struct{}{}
	}
	return len(gotSet) == len(wantSet)
}

// Percentage returns score as a share of total in the range 0..100.
func Percentage(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(score) / float64(total) * 100
}

// AttemptDeadline is the moment an attempt stops accepting answers:
// the earlier of started+duration and the quiz deadline.
func AttemptDeadline(startedAt time.Time, duration time.Duration, quizDeadline time.Time) time.Time {
	end := startedAt.Add(duration)
	if quizDeadline.Before(end) {
		return quizDeadline
	}
	return end
}

// Remaining returns how long the attempt may still run at now, never negative.
func Remaining(now, deadline time.Time) time.Duration {
	if !now.Before(deadline) {
		return 0
	}
	return deadline.Sub(now)
}

// TimeTaken returns elapsed whole seconds between start and completion,
// capped at duration.
func TimeTaken(startedAt, completedAt time.Time, duration time.Duration) int {
	elapsed := completedAt.Sub(startedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	if duration > 0 && elapsed > duration {
		elapsed = duration
	}
	return int(elapsed / time.Second)
}

// FirstUnanswered returns the index in order of the first question without a
// selection, or len(order) when every question has one.
func FirstUnanswered(order []uuid.UUID, selections Selections) int {
	for i, qID := range order {
		if len(selections[qID]) == 0 {
			return i
		}
	}
	return len(order)
}
