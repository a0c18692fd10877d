package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/student-records-api/internal/models"
)

const uniqueViolationCode = "23505"

// IsUniqueViolation reports whether err is a Postgres unique constraint
// violation. Concurrent creates with colliding identity ciphertext race at
// the constraint; the loser surfaces here.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}

// StudentRepository manages persistence for student rows. Identity columns
// hold ciphertext; the repository never encrypts or decrypts.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = "id, name, student_id, email, course, year, image, media_asset_id, created_at, updated_at"

// List returns every student ordered by creation time, newest first.
func (r *StudentRepository) List(ctx context.Context) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students ORDER BY created_at DESC", studentColumns)
	students := []models.Student{}
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FindByID fetches a single student row.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByIdentity fetches the row whose encrypted email and student_id columns
// match exactly. Both arguments must already be ciphertext; deterministic
// encryption makes ciphertext equality equivalent to plaintext equality.
func (r *StudentRepository) FindByIdentity(ctx context.Context, encEmail, encStudentID string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE email = $1 AND student_id = $2", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, encEmail, encStudentID); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student row, assigning id and timestamps.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, name, student_id, email, course, year, image, media_asset_id, created_at, updated_at)
        VALUES (:id, :name, :student_id, :email, :course, :year, :image, :media_asset_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update applies a partial patch. Only supplied fields change; updated_at is
// always refreshed regardless of which fields changed. Returns the updated
// row, or sql.ErrNoRows when no row matched the id.
func (r *StudentRepository) Update(ctx context.Context, id string, patch models.StudentPatch) (*models.Student, error) {
	sets := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.StudentID != nil {
		add("student_id", *patch.StudentID)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Course != nil {
		add("course", *patch.Course)
	}
	if patch.Year != nil {
		add("year", *patch.Year)
	}
	if patch.Image != nil {
		add("image", *patch.Image)
	}
	if patch.MediaAssetID != nil {
		add("media_asset_id", *patch.MediaAssetID)
	}
	add("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE students SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), studentColumns)

	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, args...); err != nil {
		if err == sql.ErrNoRows || IsUniqueViolation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("update student: %w", err)
	}
	return &student, nil
}

// Delete removes the row permanently. Returns sql.ErrNoRows when the id
// matched nothing.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
