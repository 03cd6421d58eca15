package repository

import (
	"context"

	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StudentRepository handles student data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

const studentSelect = `
	SELECT s.id, s.group_id, g.name, s.name, s.code, s.created_at, s.updated_at
	FROM students s
	JOIN groups g ON g.id = s.group_id`

func scanStudent(row pgx.Row, s *model.Student) error {
	return row.Scan(&s.ID, &s.GroupID, &s.GroupName, &s.Name, &s.Code, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID retrieves a student by ID along with the owning teacher of its group.
func (r *StudentRepository) GetByID(ctx context.Context, id int) (*model.Student, int, error) {
	s := &model.Student{}
	var teacherID int
	err := r.pool.QueryRow(ctx,
		`SELECT s.id, s.group_id, g.name, s.name, s.code, s.created_at, s.updated_at, g.teacher_id
		 FROM students s JOIN groups g ON g.id = s.group_id
		 WHERE s.id = $1`, id,
	).Scan(&s.ID, &s.GroupID, &s.GroupName, &s.Name, &s.Code, &s.CreatedAt, &s.UpdatedAt, &teacherID)
	if err != nil {
		return nil, 0, err
	}
	return s, teacherID, nil
}

// GetByCode retrieves a student by their normalised code.
func (r *StudentRepository) GetByCode(ctx context.Context, code string) (*model.Student, error) {
	s := &model.Student{}
	if err := scanStudent(r.pool.QueryRow(ctx, studentSelect+` WHERE s.code = $1`, code), s); err != nil {
		return nil, err
	}
	return s, nil
}

// ListByGroup retrieves a page of students of a group ordered by name.
func (r *StudentRepository) ListByGroup(ctx context.Context, groupID, limit, offset int) ([]model.Student, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM students WHERE group_id = $1`, groupID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		studentSelect+` WHERE s.group_id = $1 ORDER BY s.name, s.id LIMIT $2 OFFSET $3`,
		groupID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	students := make([]model.Student, 0)
	for rows.Next() {
		var s model.Student
		if err := scanStudent(rows, &s); err != nil {
			return nil, 0, err
		}
		students = append(students, s)
	}
	return students, total, rows.Err()
}

// Create inserts a student. Returns ErrDuplicateStudentCode on a code clash.
func (r *StudentRepository) Create(ctx context.Context, s *model.Student) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (group_id, name, code) VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		s.GroupID, s.Name, s.Code,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateStudentCode
		}
		return err
	}
	return nil
}

// Update changes a student's name and group.
func (r *StudentRepository) Update(ctx context.Context, s *model.Student) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE students SET name = $1, group_id = $2, updated_at = NOW() WHERE id = $3`,
		s.Name, s.GroupID, s.ID,
	)
	return err
}

// UpdateCode replaces a student's code.
func (r *StudentRepository) UpdateCode(ctx context.Context, id int, code string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE students SET code = $1, updated_at = NOW() WHERE id = $2`, code, id,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateStudentCode
	}
	return err
}

// Delete removes a student together with their attempts.
func (r *StudentRepository) Delete(ctx context.Context, id int) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	return err
}
