//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// edgeQuiz is a published quiz created for one scenario.
type edgeQuiz struct {
	id         string
	accessCode string
	questions  []model.Question
}

func (q edgeQuiz) correct(i int) []uuid.UUID {
	var ids []uuid.UUID
	for _, a := range q.questions[i].Answers {
		if a.IsCorrect {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func TestE2EEdgeCases(t *testing.T) {
	token := login(t)
	group := createGroup(t, token, "E2E Edge Group")
	for _, code := range []string{"EDGE0001", "EDGE0002", "EDGE0003", "EDGE0004", "EDGE0005", "EDGE0006", "EDGE0007", "EDGE0008"} {
		createStudent(t, token, group, "Student "+code, code)
	}

	timed := createQuiz(t, token, group, "E2E Timed Quiz", 10, []model.QuestionRequest{singleQuestion()})
	publish(t, token, timed.id)

	t.Run("SaveAfterTimeLimitTimesOut", func(t *testing.T) {
		attemptToken, attemptID := join(t, timed.accessCode, "EDGE0001")
		backdateStart(t, attemptID, 11*time.Minute)

		resp := mustDo(t, http.MethodPut, "/play/answers/"+timed.questions[0].ID.String(),
			model.SaveAnswerRequest{AnswerIDs: timed.correct(0)}, attemptToken, http.StatusConflict)
		expectCode(t, resp, response.ErrTimeUp)

		status, startedAt, completedAt := attemptTiming(t, attemptID)
		if status != model.AttemptStatusTimedOut {
			t.Fatalf("status = %s, want TIMED_OUT", status)
		}
		if completedAt == nil || !completedAt.Equal(startedAt.Add(10*time.Minute)) {
			t.Fatalf("completed_at = %v, want %v", completedAt, startedAt.Add(10*time.Minute))
		}

		resp = mustDo(t, http.MethodGet, "/play/result", nil, attemptToken, http.StatusOK)
		resp.Body.Close()
	})

	t.Run("SweepClosesAbandonedAttempt", func(t *testing.T) {
		_, attemptID := join(t, timed.accessCode, "EDGE0002")
		backdateStart(t, attemptID, 30*time.Minute)

		wait := 3 * sweepInterval()
		deadline := time.Now().Add(wait)
		for {
			status, startedAt, completedAt := attemptTiming(t, attemptID)
			if status == model.AttemptStatusTimedOut {
				if completedAt == nil || !completedAt.Equal(startedAt.Add(10*time.Minute)) {
					t.Fatalf("completed_at = %v, want %v", completedAt, startedAt.Add(10*time.Minute))
				}
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("attempt still %s after %v", status, wait)
			}
			time.Sleep(500 * time.Millisecond)
		}
	})

	t.Run("ConcurrentJoinsShareOneAttempt", func(t *testing.T) {
		const joins = 4
		var wg sync.WaitGroup
		ids := make([]uuid.UUID, joins)
		errs := make([]error, joins)
		for i := 0; i < joins; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i], errs[i] = joinID(timed.accessCode, "EDGE0003")
			}(i)
		}
		wg.Wait()

		for i := 0; i < joins; i++ {
			if errs[i] != nil {
				t.Fatalf("join %d: %v", i, errs[i])
			}
			if ids[i] != ids[0] {
				t.Fatalf("joins produced attempts %s and %s", ids[0], ids[i])
			}
		}
		if n := countAttempts(t, timed.id, "EDGE0003"); n != 1 {
			t.Fatalf("expected 1 attempt row, got %d", n)
		}
	})

	t.Run("SaveToCompletedAttemptFails", func(t *testing.T) {
		attemptToken, _ := join(t, timed.accessCode, "EDGE0003")
		resp := mustDo(t, http.MethodPost, "/play/complete", nil, attemptToken, http.StatusOK)
		resp.Body.Close()

		resp = mustDo(t, http.MethodPut, "/play/answers/"+timed.questions[0].ID.String(),
			model.SaveAnswerRequest{AnswerIDs: timed.correct(0)}, attemptToken, http.StatusConflict)
		expectCode(t, resp, response.ErrAttemptFinished)
	})

	t.Run("MultipleChoiceGradingAndTieBreak", func(t *testing.T) {
		quiz := createQuiz(t, token, group, "E2E Multiple Quiz", 10,
			[]model.QuestionRequest{singleQuestion(), multipleQuestion()})
		publish(t, token, quiz.id)

		var wrong uuid.UUID
		for _, a := range quiz.questions[1].Answers {
			if !a.IsCorrect {
				wrong = a.ID
			}
		}
		players := []struct {
			code      string
			selection []uuid.UUID
			taken     int
			wantScore int
			wantRank  int
		}{
			{"EDGE0004", quiz.correct(1), 300, 2, 2},
			{"EDGE0005", quiz.correct(1)[:1], 60, 1, 4},
			{"EDGE0006", append(quiz.correct(1), wrong), 30, 1, 3},
			{"EDGE0007", quiz.correct(1), 120, 2, 1},
		}

		attempts := make(map[string]uuid.UUID)
		for _, p := range players {
			attemptToken, attemptID := join(t, quiz.accessCode, p.code)
			attempts[p.code] = attemptID
			save(t, attemptToken, quiz.questions[0].ID, quiz.correct(0))
			save(t, attemptToken, quiz.questions[1].ID, p.selection)

			resp := mustDo(t, http.MethodPost, "/play/complete", nil, attemptToken, http.StatusOK)
			var body struct {
				Data model.AttemptResult `json:"data"`
			}
			decodeJSON(t, resp, &body)
			if body.Data.Attempt.Score != p.wantScore {
				t.Fatalf("%s scored %d, want %d", p.code, body.Data.Attempt.Score, p.wantScore)
			}
		}
		for _, p := range players {
			setTimeTaken(t, attempts[p.code], p.taken)
		}

		expire(t, quiz.id)
		rows := leaderboard(t, token, quiz.id)
		if len(rows) != len(players) {
			t.Fatalf("expected %d rows, got %d", len(players), len(rows))
		}
		for _, p := range players {
			var row *model.AttemptRow
			for i := range rows {
				if rows[i].AttemptID == attempts[p.code] {
					row = &rows[i]
				}
			}
			if row == nil || row.Ranking == nil || *row.Ranking != p.wantRank {
				t.Errorf("%s: got row %+v, want rank %d", p.code, row, p.wantRank)
			}
		}
	})

	t.Run("RepublishedQuizIsRankedAgain", func(t *testing.T) {
		quiz := createQuiz(t, token, group, "E2E Republished Quiz", 10, []model.QuestionRequest{singleQuestion()})
		publish(t, token, quiz.id)
		expire(t, quiz.id)
		resp := mustDo(t, http.MethodPost, "/quizzes/"+quiz.id+"/rankings", nil, token, http.StatusOK)
		resp.Body.Close()

		resp = mustDo(t, http.MethodPost, "/quizzes/"+quiz.id+"/unpublish", nil, token, http.StatusOK)
		resp.Body.Close()
		resp = mustDo(t, http.MethodPost, "/quizzes/"+quiz.id+"/rankings", nil, token, http.StatusConflict)
		expectCode(t, resp, response.ErrQuizNotPublished)

		later := time.Now().Add(time.Hour)
		resp = mustDo(t, http.MethodPatch, "/quizzes/"+quiz.id, model.UpdateQuizRequest{Deadline: &later}, token, http.StatusOK)
		resp.Body.Close()
		publish(t, token, quiz.id)

		attemptToken, _ := join(t, quiz.accessCode, "EDGE0008")
		save(t, attemptToken, quiz.questions[0].ID, quiz.correct(0))
		resp = mustDo(t, http.MethodPost, "/play/complete", nil, attemptToken, http.StatusOK)
		var result struct {
			Data model.AttemptResult `json:"data"`
		}
		decodeJSON(t, resp, &result)
		if result.Data.RankingReleased {
			t.Fatal("ranking released from the previous publication")
		}

		expire(t, quiz.id)
		rows := leaderboard(t, token, quiz.id)
		if len(rows) != 1 || rows[0].Ranking == nil || *rows[0].Ranking != 1 {
			t.Fatalf("republished quiz not ranked: %+v", rows)
		}
	})
}

// Helpers

func login(t *testing.T) string {
	t.Helper()
	resp := mustDo(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    teacherEmail,
		"password": teacherPass,
	}, "", http.StatusOK)
	var body struct {
		Data model.TeacherLoginResponse `json:"data"`
	}
	decodeJSON(t, resp, &body)
	return body.Data.Token
}

func createGroup(t *testing.T, token, name string) int {
	t.Helper()
	resp := mustDo(t, http.MethodPost, "/groups", model.GroupRequest{Name: name}, token, http.StatusCreated)
	var body struct {
		Data struct {
			Group model.Group `json:"group"`
		} `json:"data"`
	}
	decodeJSON(t, resp, &body)
	return body.Data.Group.ID
}

func createStudent(t *testing.T, token string, group int, name, code string) {
	t.Helper()
	resp := mustDo(t, http.MethodPost, fmt.Sprintf("/groups/%d/students", group),
		model.CreateStudentRequest{Name: name, Code: code}, token, http.StatusCreated)
	resp.Body.Close()
}

func singleQuestion() model.QuestionRequest {
	return model.QuestionRequest{
		QuestionText: "What is 3+3?",
		QuestionType: string(model.QuestionTypeSingle),
		Answers: []model.AnswerRequest{
			{AnswerText: "5"},
			{AnswerText: "6", IsCorrect: true},
		},
	}
}

func multipleQuestion() model.QuestionRequest {
	return model.QuestionRequest{
		QuestionText: "Which are prime?",
		QuestionType: string(model.QuestionTypeMultiple),
		Answers: []model.AnswerRequest{
			{AnswerText: "2", IsCorrect: true},
			{AnswerText: "3", IsCorrect: true},
			{AnswerText: "4"},
		},
	}
}

func createQuiz(t *testing.T, token string, group int, title string, minutes int, questions []model.QuestionRequest) edgeQuiz {
	t.Helper()
	resp := mustDo(t, http.MethodPost, "/quizzes", model.CreateQuizRequest{
		Title:           title,
		DurationMinutes: minutes,
		Deadline:        time.Now().Add(2 * time.Hour),
		GroupIDs:        []int{group},
	}, token, http.StatusCreated)
	var body struct {
		Data struct {
			Quiz model.Quiz `json:"quiz"`
		} `json:"data"`
	}
	decodeJSON(t, resp, &body)
	q := edgeQuiz{id: body.Data.Quiz.ID.String(), accessCode: body.Data.Quiz.AccessCode}

	for _, req := range questions {
		resp := mustDo(t, http.MethodPost, "/quizzes/"+q.id+"/questions", req, token, http.StatusCreated)
		var body struct {
			Data struct {
				Question model.Question `json:"question"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		q.questions = append(q.questions, body.Data.Question)
	}
	return q
}

func publish(t *testing.T, token, quizID string) {
	t.Helper()
	resp := mustDo(t, http.MethodPost, "/quizzes/"+quizID+"/publish", nil, token, http.StatusOK)
	resp.Body.Close()
}

func join(t *testing.T, code, studentCode string) (string, uuid.UUID) {
	t.Helper()
	resp, err := do(http.MethodPost, "/play/join", model.JoinQuizRequest{AccessCode: code, StudentCode: studentCode}, "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		t.Fatalf("join %s: status %d: %s", studentCode, resp.StatusCode, readBody(resp))
	}
	var body struct {
		Data model.JoinQuizResponse `json:"data"`
	}
	decodeJSON(t, resp, &body)
	return body.Data.Token, body.Data.Attempt.ID
}

// joinID is join without a *testing.T, for use from goroutines.
func joinID(code, studentCode string) (uuid.UUID, error) {
	resp, err := do(http.MethodPost, "/play/join", model.JoinQuizRequest{AccessCode: code, StudentCode: studentCode}, "")
	if err != nil {
		return uuid.Nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return uuid.Nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	var body struct {
		Data model.JoinQuizResponse `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return uuid.Nil, err
	}
	return body.Data.Attempt.ID, nil
}

func save(t *testing.T, attemptToken string, questionID uuid.UUID, ids []uuid.UUID) {
	t.Helper()
	resp := mustDo(t, http.MethodPut, "/play/answers/"+questionID.String(),
		model.SaveAnswerRequest{AnswerIDs: ids}, attemptToken, http.StatusOK)
	resp.Body.Close()
}

func leaderboard(t *testing.T, token, quizID string) []model.AttemptRow {
	t.Helper()
	resp := mustDo(t, http.MethodGet, "/quizzes/"+quizID+"/leaderboard", nil, token, http.StatusOK)
	var body struct {
		Data model.Leaderboard `json:"data"`
	}
	decodeJSON(t, resp, &body)
	if !body.Data.Final {
		t.Fatal("leaderboard not final after deadline")
	}
	return body.Data.Rows
}

func expectCode(t *testing.T, resp *http.Response, want response.ErrCode) {
	t.Helper()
	var body response.Response
	decodeJSON(t, resp, &body)
	if body.Error == nil || body.Error.Code != want {
		t.Fatalf("error = %+v, want %s", body.Error, want)
	}
}

func sweepInterval() time.Duration {
	if s, err := strconv.Atoi(os.Getenv("SWEEP_INTERVAL_SECONDS")); err == nil && s > 0 {
		return time.Duration(s) * time.Second
	}
	return 15 * time.Second
}

// Database helpers move attempt clocks, which the API cannot do.

func withDB(t *testing.T, fn func(ctx context.Context, conn *pgx.Conn)) {
	t.Helper()
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	defer conn.Close(ctx)
	fn(ctx, conn)
}

func backdateStart(t *testing.T, attemptID uuid.UUID, by time.Duration) {
	t.Helper()
	withDB(t, func(ctx context.Context, conn *pgx.Conn) {
		if _, err := conn.Exec(ctx,
			`UPDATE quiz_attempts SET started_at = started_at - make_interval(secs => $2) WHERE id = $1`,
			attemptID, by.Seconds()); err != nil {
			t.Fatalf("backdate attempt: %v", err)
		}
	})
}

func setTimeTaken(t *testing.T, attemptID uuid.UUID, seconds int) {
	t.Helper()
	withDB(t, func(ctx context.Context, conn *pgx.Conn) {
		if _, err := conn.Exec(ctx,
			`UPDATE quiz_attempts SET time_taken_seconds = $2,
			        completed_at = started_at + make_interval(secs => $2) WHERE id = $1`,
			attemptID, seconds); err != nil {
			t.Fatalf("set time taken: %v", err)
		}
	})
}

func expire(t *testing.T, quizID string) {
	t.Helper()
	withDB(t, func(ctx context.Context, conn *pgx.Conn) {
		if _, err := conn.Exec(ctx,
			`UPDATE quizzes SET deadline = NOW() - INTERVAL '1 second' WHERE id = $1`, quizID); err != nil {
			t.Fatalf("expire quiz: %v", err)
		}
	})
}

func attemptTiming(t *testing.T, attemptID uuid.UUID) (model.AttemptStatus, time.Time, *time.Time) {
	t.Helper()
	var (
		status      model.AttemptStatus
		startedAt   time.Time
		completedAt *time.Time
	)
	withDB(t, func(ctx context.Context, conn *pgx.Conn) {
		if err := conn.QueryRow(ctx,
			`SELECT status, started_at, completed_at FROM quiz_attempts WHERE id = $1`, attemptID,
		).Scan(&status, &startedAt, &completedAt); err != nil {
			t.Fatalf("read attempt: %v", err)
		}
	})
	return status, startedAt, completedAt
}

func countAttempts(t *testing.T, quizID, studentCode string) int {
	t.Helper()
	var n int
	withDB(t, func(ctx context.Context, conn *pgx.Conn) {
		if err := conn.QueryRow(ctx,
			`SELECT COUNT(*) FROM quiz_attempts a JOIN students s ON s.id = a.student_id
			 WHERE a.quiz_id = $1 AND s.code = $2`, quizID, studentCode,
		).Scan(&n); err != nil {
			t.Fatalf("count attempts: %v", err)
		}
	})
	return n
}
