package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/classquiz/classquiz-backend/internal/accesscode"
	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/repository"
	"github.com/classquiz/classquiz-backend/internal/response"
	"github.com/classquiz/classquiz-backend/internal/spreadsheet"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// StudentService handles student business logic.
type StudentService struct {
	studentRepo *repository.StudentRepository
	groups      *GroupService
	log         zerolog.Logger
}

// NewStudentService creates a new StudentService.
func NewStudentService(studentRepo *repository.StudentRepository, groups *GroupService, log zerolog.Logger) *StudentService {
	return &StudentService{
		studentRepo: studentRepo,
		groups:      groups,
		log:         log.With().Str("component", "student_service").Logger(),
	}
}

// ListByGroup returns a page of students of one of the teacher's groups.
func (s *StudentService) ListByGroup(ctx context.Context, teacherID, groupID, page, perPage int) ([]model.Student, *response.Pagination, error) {
	if _, err := s.groups.Get(ctx, teacherID, groupID); err != nil {
		return nil, nil, err
	}
	page, perPage, offset := pageBounds(page, perPage)
	students, total, err := s.studentRepo.ListByGroup(ctx, groupID, perPage, offset)
	if err != nil {
		return nil, nil, err
	}
	return students, response.NewPagination(page, perPage, total), nil
}

// Get returns a student that belongs to one of the teacher's groups.
func (s *StudentService) Get(ctx context.Context, teacherID, id int) (*model.Student, error) {
	st, owner, err := s.studentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if owner != teacherID {
		return nil, ErrNotFound
	}
	return st, nil
}

// maxCodeLength matches the width of students.code.
const maxCodeLength = 12

// Create adds a student to a group. An empty code is generated; a supplied
// code is normalised and must be unique.
func (s *StudentService) Create(ctx context.Context, teacherID, groupID int, name, code string) (*model.Student, error) {
	g, err := s.groups.Get(ctx, teacherID, groupID)
	if err != nil {
		return nil, err
	}
	st := &model.Student{GroupID: groupID, GroupName: g.Name, Name: strings.TrimSpace(name)}

	if code = accesscode.Normalize(code); code != "" {
		if len(code) > maxCodeLength || !accesscode.Valid(code) {
			return nil, ErrMalformedCode
		}
		st.Code = code
		if err := s.studentRepo.Create(ctx, st); err != nil {
			if errors.Is(err, repository.ErrDuplicateStudentCode) {
				return nil, ErrConflict
			}
			return nil, err
		}
		return st, nil
	}

	if err := s.createWithGeneratedCode(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *StudentService) createWithGeneratedCode(ctx context.Context, st *model.Student) error {
	for i := 0; i < accesscode.MaxAttempts; i++ {
		code, err := accesscode.Generate(accesscode.StudentCodeLength)
		if err != nil {
			return err
		}
		st.Code = code
		err = s.studentRepo.Create(ctx, st)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrDuplicateStudentCode) {
			return err
		}
	}
	return fmt.Errorf("generate student code: %w", ErrConflict)
}

// Update renames a student or moves them to another of the teacher's groups.
func (s *StudentService) Update(ctx context.Context, teacherID, id int, req model.UpdateStudentRequest) (*model.Student, error) {
	st, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	if req.GroupID != st.GroupID {
		g, err := s.groups.Get(ctx, teacherID, req.GroupID)
		if err != nil {
			return nil, err
		}
		st.GroupName = g.Name
	}
	st.Name = strings.TrimSpace(req.Name)
	st.GroupID = req.GroupID
	if err := s.studentRepo.Update(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

// RegenerateCode assigns a fresh random code to a student.
func (s *StudentService) RegenerateCode(ctx context.Context, teacherID, id int) (*model.Student, error) {
	st, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	for i := 0; i < accesscode.MaxAttempts; i++ {
		code, err := accesscode.Generate(accesscode.StudentCodeLength)
		if err != nil {
			return nil, err
		}
		err = s.studentRepo.UpdateCode(ctx, id, code)
		if err == nil {
			st.Code = code
			return st, nil
		}
		if !errors.Is(err, repository.ErrDuplicateStudentCode) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("regenerate student code: %w", ErrConflict)
}

// Delete removes a student and their attempts.
func (s *StudentService) Delete(ctx context.Context, teacherID, id int) error {
	if _, err := s.Get(ctx, teacherID, id); err != nil {
		return err
	}
	return s.studentRepo.Delete(ctx, id)
}

// Import reads students from an XLSX sheet into a group. Rows that cannot be
// created are reported in Skipped keyed by "row N".
func (s *StudentService) Import(ctx context.Context, teacherID, groupID int, r io.Reader) (*model.ImportStudentsResult, error) {
	if _, err := s.groups.Get(ctx, teacherID, groupID); err != nil {
		return nil, err
	}
	rows, err := spreadsheet.ReadStudents(r)
	if err != nil {
		return nil, err
	}

	res := &model.ImportStudentsResult{Created: make([]model.Student, 0, len(rows)), Skipped: map[string]string{}}
	for _, row := range rows {
		key := "row " + strconv.Itoa(row.Row)
		st, err := s.Create(ctx, teacherID, groupID, row.Name, row.Code)
		if err != nil {
			switch {
			case errors.Is(err, ErrConflict):
				res.Skipped[key] = "student code already in use"
				continue
			case errors.Is(err, ErrMalformedCode):
				res.Skipped[key] = "student code has invalid characters"
				continue
			}
			return nil, fmt.Errorf("import %s: %w", key, err)
		}
		res.Created = append(res.Created, *st)
	}

	s.log.Info().
		Int("group_id", groupID).
		Int("created", len(res.Created)).
		Int("skipped", len(res.Skipped)).
		Msg("Students imported")
	return res, nil
}
