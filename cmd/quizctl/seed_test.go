package main

import (
	"strings"
	"testing"

	"github.com/classquiz/classquiz-backend/internal/model"
)

const validSeed = `
teacher: teacher@example.com
groups:
  - name: Class 7A
    students:
      - name: Ana
        code: ANA001
      - name: Budi
quizzes:
  - title: Fractions
    duration_minutes: 20
    deadline: 2030-01-01T10:00:00Z
    groups: [Class 7A]
    publish: true
    questions:
      - text: 1/2 + 1/4 = ?
        answers:
          - text: 3/4
            correct: true
          - text: 2/6
      - text: Pick the fractions equal to 1/2
        type: MULTIPLE
        answers:
          - text: 2/4
            correct: true
          - text: 3/6
            correct: true
          - text: 2/3
`

func TestParseSeed(t *testing.T) {
	f, err := parseSeed(strings.NewReader(validSeed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.Groups) != 1 || len(f.Groups[0].Students) != 2 {
		t.Fatalf("unexpected groups: %+v", f.Groups)
	}
	if len(f.Quizzes) != 1 || !f.Quizzes[0].Publish {
		t.Fatalf("unexpected quizzes: %+v", f.Quizzes)
	}
	if f.Quizzes[0].Deadline.Year() != 2030 {
		t.Fatalf("deadline not parsed: %s", f.Quizzes[0].Deadline)
	}

	first := f.Quizzes[0].Questions[0].request()
	if first.QuestionType != string(model.QuestionTypeSingle) {
		t.Fatalf("expected SINGLE default, got %s", first.QuestionType)
	}
	second := f.Quizzes[0].Questions[1].request()
	if second.QuestionType != string(model.QuestionTypeMultiple) || len(second.Answers) != 3 {
		t.Fatalf("unexpected second question: %+v", second)
	}
	if !second.Answers[0].IsCorrect || second.Answers[2].IsCorrect {
		t.Fatalf("correct flags not carried: %+v", second.Answers)
	}
}

func TestParseSeedRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown key",
			yaml: "teacher: t@example.com\nclasses: []\n",
			want: "decode",
		},
		{
			name: "missing teacher",
			yaml: "groups: []\n",
			want: "invalid seed file",
		},
		{
			name: "bad student code",
			yaml: "teacher: t@example.com\ngroups:\n  - name: A\n    students:\n      - name: X\n        code: a-b\n",
			want: "invalid seed file",
		},
		{
			name: "too few answers",
			yaml: "teacher: t@example.com\nquizzes:\n  - title: Quiz\n    duration_minutes: 5\n    deadline: 2030-01-01T00:00:00Z\n    questions:\n      - text: Q\n        answers:\n          - text: only\n",
			want: "invalid seed file",
		},
		{
			name: "unknown group",
			yaml: "teacher: t@example.com\nquizzes:\n  - title: Quiz\n    duration_minutes: 5\n    deadline: 2030-01-01T00:00:00Z\n    groups: [Nope]\n",
			want: "unknown group",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSeed(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in error, got %v", tt.want, err)
			}
		})
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"create-teacher", "reset-password", "seed", "rank"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %s not registered", name)
		}
	}
}

func TestResetPasswordFlags(t *testing.T) {
	cmd := newResetPasswordCmd()
	if cmd.Flags().Lookup("email") == nil {
		t.Fatal("reset-password has no --email flag")
	}
	if cmd.Flags().Lookup("name") != nil {
		t.Error("reset-password must not take --name")
	}
}
