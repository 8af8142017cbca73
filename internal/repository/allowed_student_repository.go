package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labubou/TAConnect-sub000/internal/model"
	"github.com/labubou/TAConnect-sub000/internal/repository/base"
)

// AllowedStudentRepository reads allow-list rows. The bulk-import
// collaborator writes them; the core only checks membership.
type AllowedStudentRepository struct {
	*base.Repository
}

func NewAllowedStudentRepository(pool *pgxpool.Pool) *AllowedStudentRepository {
	return &AllowedStudentRepository{Repository: base.NewRepository(pool)}
}

// ExistsByEmail reports whether the email is on the policy's allow-list.
// Matching is case-insensitive.
func (r *AllowedStudentRepository) ExistsByEmail(ctx context.Context, policyID int64, email string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM allowed_students
			WHERE policy_id = $1 AND lower(email) = lower($2)
		)
	`

	var exists bool
	err := r.QueryRow(ctx, query, policyID, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check allow-list email: %w", err)
	}

	return exists, nil
}

// ListByPolicyID returns the full allow-list of a policy.
func (r *AllowedStudentRepository) ListByPolicyID(ctx context.Context, policyID int64) ([]*model.AllowedStudent, error) {
	query := `
		SELECT id, policy_id, first_name, last_name, student_number, email, created_at
		FROM allowed_students
		WHERE policy_id = $1
		ORDER BY last_name, first_name
	`

	rows, err := r.Query(ctx, query, policyID)
	if err != nil {
		return nil, fmt.Errorf("list allowed students: %w", err)
	}
	defer rows.Close()

	var students []*model.AllowedStudent
	for rows.Next() {
		var s model.AllowedStudent
		err := rows.Scan(
			&s.ID,
			&s.PolicyID,
			&s.FirstName,
			&s.LastName,
			&s.StudentNumber,
			&s.Email,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan allowed student: %w", err)
		}
		students = append(students, &s)
	}

	return students, nil
}
