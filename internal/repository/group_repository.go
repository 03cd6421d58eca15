package repository

import (
	"context"

	"github.com/classquiz/classquiz-backend/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GroupRepository handles group data access.
type GroupRepository struct {
	pool *pgxpool.Pool
}

func NewGroupRepository(pool *pgxpool.Pool) *GroupRepository {
	return &GroupRepository{pool: pool}
}

const groupSelect = `
	SELECT g.id, g.teacher_id, g.name,
	       (SELECT COUNT(*) FROM students s WHERE s.group_id = g.id),
	       g.created_at, g.updated_at
	FROM groups g`

func scanGroup(row pgx.Row, g *model.Group) error {
	return row.Scan(&g.ID, &g.TeacherID, &g.Name, &g.StudentCount, &g.CreatedAt, &g.UpdatedAt)
}

// ListByTeacher returns every group of a teacher ordered by name.
func (r *GroupRepository) ListByTeacher(ctx context.Context, teacherID int) ([]model.Group, error) {
	rows, err := r.pool.Query(ctx, groupSelect+` WHERE g.teacher_id = $1 ORDER BY g.name`, teacherID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	groups := make([]model.Group, 0)
	for rows.Next() {
		var g model.Group
		if err := scanGroup(rows, &g); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GetByID retrieves a group by ID.
func (r *GroupRepository) GetByID(ctx context.Context, id int) (*model.Group, error) {
	g := &model.Group{}
	if err := scanGroup(r.pool.QueryRow(ctx, groupSelect+` WHERE g.id = $1`, id), g); err != nil {
		return nil, err
	}
	return g, nil
}

// Create inserts a group. Returns ErrDuplicateGroupName when the teacher
// already has a group with that name.
func (r *GroupRepository) Create(ctx context.Context, g *model.Group) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO groups (teacher_id, name) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		g.TeacherID, g.Name,
	).Scan(&g.ID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateGroupName
		}
		return err
	}
	return nil
}

// Rename changes a group's name.
func (r *GroupRepository) Rename(ctx context.Context, id int, name string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE groups SET name = $1, updated_at = NOW() WHERE id = $2`, name, id,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateGroupName
	}
	return err
}

// Delete removes a group. Returns ErrInUse while students still belong to it.
func (r *GroupRepository) Delete(ctx context.Context, id int) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if isForeignKeyViolation(err) {
		return ErrInUse
	}
	return err
}

// CountOwned returns how many of ids belong to teacherID.
func (r *GroupRepository) CountOwned(ctx context.Context, teacherID int, ids []int) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT id) FROM groups WHERE teacher_id = $1 AND id = ANY($2)`,
		teacherID, ids,
	).Scan(&n)
	return n, err
}
