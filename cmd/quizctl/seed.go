package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/service"
	"github.com/classquiz/classquiz-backend/internal/validator"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedFile describes demo data for one existing teacher.
type seedFile struct {
	Teacher string      `yaml:"teacher" binding:"required,email"`
	Groups  []seedGroup `yaml:"groups" binding:"dive"`
	Quizzes []seedQuiz  `yaml:"quizzes" binding:"dive"`
}

type seedGroup struct {
	Name     string        `yaml:"name" binding:"required,notblank,max=100"`
	Students []seedStudent `yaml:"students" binding:"dive"`
}

type seedStudent struct {
	Name string `yaml:"name" binding:"required,notblank,max=100"`
	Code string `yaml:"code" binding:"omitempty,alphanum,min=4,max=12"`
}

type seedQuiz struct {
	Title           string         `yaml:"title" binding:"required,min=3,max=255"`
	Description     string         `yaml:"description" binding:"max=2000"`
	DurationMinutes int            `yaml:"duration_minutes" binding:"required,min=1,max=480"`
	Deadline        time.Time      `yaml:"deadline" binding:"required"`
	Groups          []string       `yaml:"groups"`
	Publish         bool           `yaml:"publish"`
	Questions       []seedQuestion `yaml:"questions" binding:"dive"`
}

type seedQuestion struct {
	Text    string       `yaml:"text" binding:"required,notblank"`
	Type    string       `yaml:"type" binding:"omitempty,oneof=SINGLE MULTIPLE"`
	Answers []seedAnswer `yaml:"answers" binding:"required,min=2,max=10,dive"`
}

type seedAnswer struct {
	Text    string `yaml:"text" binding:"required,notblank"`
	Correct bool   `yaml:"correct"`
}

// parseSeed decodes and validates a seed file. Unknown keys are rejected
// so typos do not silently drop data.
func parseSeed(r io.Reader) (*seedFile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f seedFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if fields := validator.Validate(&f); fields != nil {
		return nil, fmt.Errorf("invalid seed file: %v", fields)
	}

	known := make(map[string]bool, len(f.Groups))
	for _, g := range f.Groups {
		known[strings.TrimSpace(g.Name)] = true
	}
	for _, q := range f.Quizzes {
		for _, name := range q.Groups {
			if !known[strings.TrimSpace(name)] {
				return nil, fmt.Errorf("quiz %q references unknown group %q", q.Title, name)
			}
		}
	}
	return &f, nil
}

func (q seedQuestion) request() model.QuestionRequest {
	typ := q.Type
	if typ == "" {
		typ = string(model.QuestionTypeSingle)
	}
	req := model.QuestionRequest{QuestionText: q.Text, QuestionType: typ}
	for _, a := range q.Answers {
		req.Answers = append(req.Answers, model.AnswerRequest{AnswerText: a.Text, IsCorrect: a.Correct})
	}
	return req
}

// seedStats counts what a seed run created.
type seedStats struct {
	Groups, Students, SkippedStudents, Quizzes, Published int
}

func newSeedCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load groups, students and quizzes from a YAML file",
		Long: "Load groups, students and quizzes for an existing teacher from a YAML file.\n" +
			"Existing groups are reused and students whose code is taken are skipped;\n" +
			"quizzes are created on every run.",
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			fh, err := os.Open(path)
			if err != nil {
				return err
			}
			defer fh.Close()

			f, err := parseSeed(fh)
			if err != nil {
				return err
			}

			stats, err := a.seed(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Seed completed: %d groups, %d students (%d skipped), %d quizzes (%d published)\n",
				stats.Groups, stats.Students, stats.SkippedStudents, stats.Quizzes, stats.Published)
			return nil
		}),
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "seed file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) seed(ctx context.Context, f *seedFile) (*seedStats, error) {
	teacher, err := a.teachers.GetByEmail(ctx, f.Teacher)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("teacher %s not found, create it with create-teacher first", f.Teacher)
		}
		return nil, err
	}

	existing, err := a.groups.List(ctx, teacher.ID)
	if err != nil {
		return nil, err
	}
	groupIDs := make(map[string]int, len(existing))
	for _, g := range existing {
		groupIDs[g.Name] = g.ID
	}

	stats := &seedStats{}
	for _, sg := range f.Groups {
		name := strings.TrimSpace(sg.Name)
		id, ok := groupIDs[name]
		if !ok {
			g, err := a.groups.Create(ctx, teacher.ID, name)
			if err != nil {
				return nil, fmt.Errorf("create group %q: %w", name, err)
			}
			id = g.ID
			groupIDs[name] = id
			stats.Groups++
		}

		for _, st := range sg.Students {
			_, err := a.students.Create(ctx, teacher.ID, id, st.Name, st.Code)
			switch {
			case err == nil:
				stats.Students++
			case errors.Is(err, service.ErrConflict):
				a.log.Warn().Str("code", st.Code).Msg("Student code taken, skipping")
				stats.SkippedStudents++
			default:
				return nil, fmt.Errorf("create student %q: %w", st.Name, err)
			}
		}
	}

	for _, sq := range f.Quizzes {
		req := model.CreateQuizRequest{
			Title:           sq.Title,
			Description:     sq.Description,
			DurationMinutes: sq.DurationMinutes,
			Deadline:        sq.Deadline,
		}
		for _, name := range sq.Groups {
			req.GroupIDs = append(req.GroupIDs, groupIDs[strings.TrimSpace(name)])
		}

		quiz, err := a.quizzes.Create(ctx, teacher.ID, req)
		if err != nil {
			return nil, fmt.Errorf("create quiz %q: %w", sq.Title, err)
		}
		stats.Quizzes++

		questions := make([]model.QuestionRequest, 0, len(sq.Questions))
		for _, q := range sq.Questions {
			questions = append(questions, q.request())
		}
		if len(questions) > 0 {
			if _, err := a.questions.ReplaceAll(ctx, teacher.ID, quiz.ID, questions); err != nil {
				return nil, fmt.Errorf("add questions to %q: %w", sq.Title, err)
			}
		}

		if sq.Publish {
			if _, err := a.quizzes.Publish(ctx, teacher.ID, quiz.ID); err != nil {
				return nil, fmt.Errorf("publish %q: %w", sq.Title, err)
			}
			stats.Published++
		}
		a.log.Info().Str("quiz_id", quiz.ID.String()).Str("access_code", quiz.AccessCode).Msg("Seeded quiz")
	}

	return stats, nil
}
