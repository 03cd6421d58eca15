package service

import (
	"errors"
	"testing"
	"time"

	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/google/uuid"
)

func studentQuestion(typ model.QuestionType, n int) *model.QuestionForStudent {
	q := &model.QuestionForStudent{ID: uuid.New(), QuestionType: typ}
	for i := 0; i < n; i++ {
		q.Answers = append(q.Answers, model.AnswerForStudent{ID: uuid.New(), OrderNum: i})
	}
	return q
}

func TestCheckSelection(t *testing.T) {
	single := studentQuestion(model.QuestionTypeSingle, 3)
	multi := studentQuestion(model.QuestionTypeMultiple, 3)

	t.Run("empty clears", func(t *testing.T) {
		ids, err := checkSelection(single, nil)
		if err != nil || len(ids) != 0 {
			t.Fatalf("got %v, %v", ids, err)
		}
	})
	t.Run("single accepts one", func(t *testing.T) {
		ids, err := checkSelection(single, []uuid.UUID{single.Answers[1].ID})
		if err != nil || len(ids) != 1 {
			t.Fatalf("got %v, %v", ids, err)
		}
	})
	t.Run("single rejects two", func(t *testing.T) {
		_, err := checkSelection(single, []uuid.UUID{single.Answers[0].ID, single.Answers[1].ID})
		if !errors.Is(err, ErrInvalidAnswer) {
			t.Fatalf("err = %v, want ErrInvalidAnswer", err)
		}
	})
	t.Run("single tolerates a repeated id", func(t *testing.T) {
		id := single.Answers[2].ID
		ids, err := checkSelection(single, []uuid.UUID{id, id})
		if err != nil || len(ids) != 1 {
			t.Fatalf("got %v, %v", ids, err)
		}
	})
	t.Run("multiple accepts several", func(t *testing.T) {
		ids, err := checkSelection(multi, []uuid.UUID{multi.Answers[0].ID, multi.Answers[2].ID})
		if err != nil || len(ids) != 2 {
			t.Fatalf("got %v, %v", ids, err)
		}
	})
	t.Run("foreign answer rejected", func(t *testing.T) {
		_, err := checkSelection(multi, []uuid.UUID{single.Answers[0].ID})
		if !errors.Is(err, ErrInvalidAnswer) {
			t.Fatalf("err = %v, want ErrInvalidAnswer", err)
		}
	})
}

func TestFindQuestion(t *testing.T) {
	q1 := studentQuestion(model.QuestionTypeSingle, 2)
	q2 := studentQuestion(model.QuestionTypeMultiple, 2)
	paper := &model.QuizPaper{Questions: []model.QuestionForStudent{*q1, *q2}}

	if got := findQuestion(paper, q2.ID); got == nil || got.ID != q2.ID {
		t.Fatalf("findQuestion() = %v, want %s", got, q2.ID)
	}
	if findQuestion(paper, uuid.New()) != nil {
		t.Error("unknown question found")
	}
}

func TestBuildPaperHidesCorrectness(t *testing.T) {
	quiz := &model.Quiz{ID: uuid.New(), Title: "Fractions", DurationMinutes: 15, Deadline: time.Now()}
	questions := []model.Question{{
		ID:           uuid.New(),
		QuestionText: "1/2 + 1/4?",
		QuestionType: model.QuestionTypeSingle,
		OrderNum:     1,
		Answers: []model.Answer{
			{ID: uuid.New(), AnswerText: "3/4", IsCorrect: true, OrderNum: 1},
			{ID: uuid.New(), AnswerText: "2/6", OrderNum: 2},
		},
	}}

	paper := buildPaper(quiz, questions)
	if paper.QuizID != quiz.ID || paper.Duration != 15 || len(paper.Questions) != 1 {
		t.Fatalf("unexpected paper %+v", paper)
	}
	got := paper.Questions[0]
	if got.ID != questions[0].ID || len(got.Answers) != 2 || got.Answers[0].ID != questions[0].Answers[0].ID {
		t.Errorf("question not copied: %+v", got)
	}
}

func TestBuildResultHidesRankingUntilCalculated(t *testing.T) {
	rank := 2
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	stamp := now.Add(-time.Minute)
	attempt := &model.QuizAttempt{Score: 3, TotalQuestions: 4, Ranking: &rank, Status: model.AttemptStatusCompleted}

	if res := buildResult(attempt, &model.Quiz{}, now); res.Percentage != 75 {
		t.Errorf("percentage = %v, want 75", res.Percentage)
	}

	tests := []struct {
		name string
		quiz model.Quiz
		want bool
	}{
		{"not calculated", model.Quiz{Status: model.QuizStatusPublished, Deadline: now.Add(-time.Hour)}, false},
		{"calculated", model.Quiz{Status: model.QuizStatusPublished, Deadline: now.Add(-time.Hour), RankingsCalculatedAt: &stamp}, true},
		{"stale stamp after deadline moved", model.Quiz{Status: model.QuizStatusPublished, Deadline: now.Add(time.Hour), RankingsCalculatedAt: &stamp}, false},
		{"stale stamp on draft", model.Quiz{Status: model.QuizStatusDraft, Deadline: now.Add(-time.Hour), RankingsCalculatedAt: &stamp}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildResult(attempt, &tt.quiz, now).RankingReleased; got != tt.want {
				t.Errorf("RankingReleased = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCountStats(t *testing.T) {
	st := countStats([]model.AttemptRow{
		{Status: model.AttemptStatusInProgress},
		{Status: model.AttemptStatusCompleted},
		{Status: model.AttemptStatusCompleted},
		{Status: model.AttemptStatusTimedOut},
	})
	want := model.MonitorStats{Joined: 4, InProgress: 1, Completed: 2, TimedOut: 1}
	if st != want {
		t.Errorf("countStats() = %+v, want %+v", st, want)
	}
}
