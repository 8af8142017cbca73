package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labubou/TAConnect-sub000/internal/model"
	"github.com/labubou/TAConnect-sub000/internal/repository/base"
)

type PolicyRepository struct {
	*base.Repository
}

func NewPolicyRepository(pool *pgxpool.Pool) *PolicyRepository {
	return &PolicyRepository{Repository: base.NewRepository(pool)}
}

// Create stores the policy for a slot definition. One policy per definition.
func (r *PolicyRepository) Create(ctx context.Context, policy *model.Policy) error {
	query := `
		INSERT INTO slot_policies (slot_definition_id, max_per_student, require_allowlist)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		policy.SlotDefinitionID,
		policy.MaxPerStudent,
		policy.RequireAllowlist,
	).Scan(&policy.ID, &policy.CreatedAt, &policy.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create policy: %w", err)
	}

	return nil
}

// GetBySlotDefinitionID returns the slot's policy, or nil when missing.
func (r *PolicyRepository) GetBySlotDefinitionID(ctx context.Context, slotDefinitionID int64) (*model.Policy, error) {
	query := `
		SELECT id, slot_definition_id, max_per_student, require_allowlist, created_at, updated_at
		FROM slot_policies
		WHERE slot_definition_id = $1
	`

	var policy model.Policy
	err := r.QueryRow(ctx, query, slotDefinitionID).Scan(
		&policy.ID,
		&policy.SlotDefinitionID,
		&policy.MaxPerStudent,
		&policy.RequireAllowlist,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	)

	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get policy by slot definition: %w", err)
	}

	return &policy, nil
}

// Update replaces the policy's rules.
func (r *PolicyRepository) Update(ctx context.Context, policy *model.Policy) error {
	query := `
		UPDATE slot_policies
		SET max_per_student = $2, require_allowlist = $3, updated_at = now()
		WHERE slot_definition_id = $1
		RETURNING id, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		policy.SlotDefinitionID,
		policy.MaxPerStudent,
		policy.RequireAllowlist,
	).Scan(&policy.ID, &policy.UpdatedAt)

	if err != nil {
		return fmt.Errorf("update policy: %w", err)
	}

	return nil
}
