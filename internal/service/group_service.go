package service

import (
	"context"
	"errors"
	"strings"

	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/classquiz/classquiz-backend/internal/repository"
	"github.com/jackc/pgx/v5"
)

// GroupService handles group business logic. Every operation is scoped to
// the calling teacher; other teachers' groups read as not found.
type GroupService struct {
	groupRepo *repository.GroupRepository
}

// NewGroupService creates a new GroupService.
func NewGroupService(groupRepo *repository.GroupRepository) *GroupService {
	return &GroupService{groupRepo: groupRepo}
}

// List returns all groups of a teacher.
func (s *GroupService) List(ctx context.Context, teacherID int) ([]model.Group, error) {
	return s.groupRepo.ListByTeacher(ctx, teacherID)
}

// Get returns one of the teacher's groups.
func (s *GroupService) Get(ctx context.Context, teacherID, id int) (*model.Group, error) {
	g, err := s.groupRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if g.TeacherID != teacherID {
		return nil, ErrNotFound
	}
	return g, nil
}

// Create adds a group for the teacher.
func (s *GroupService) Create(ctx context.Context, teacherID int, name string) (*model.Group, error) {
	g := &model.Group{TeacherID: teacherID, Name: strings.TrimSpace(name)}
	if err := s.groupRepo.Create(ctx, g); err != nil {
		if errors.Is(err, repository.ErrDuplicateGroupName) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return g, nil
}

// Rename changes the name of one of the teacher's groups.
func (s *GroupService) Rename(ctx context.Context, teacherID, id int, name string) (*model.Group, error) {
	g, err := s.Get(ctx, teacherID, id)
	if err != nil {
		return nil, err
	}
	g.Name = strings.TrimSpace(name)
	if err := s.groupRepo.Rename(ctx, id, g.Name); err != nil {
		if errors.Is(err, repository.ErrDuplicateGroupName) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return g, nil
}

// Delete removes an empty group.
func (s *GroupService) Delete(ctx context.Context, teacherID, id int) error {
	if _, err := s.Get(ctx, teacherID, id); err != nil {
		return err
	}
	if err := s.groupRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrInUse) {
			return ErrDependencyExists
		}
		return err
	}
	return nil
}

// EnsureOwned returns ErrGroupNotOwned unless every id is a group of the teacher.
func (s *GroupService) EnsureOwned(ctx context.Context, teacherID int, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	unique := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	n, err := s.groupRepo.CountOwned(ctx, teacherID, ids)
	if err != nil {
		return err
	}
	if n != len(unique) {
		return ErrGroupNotOwned
	}
	return nil
}
