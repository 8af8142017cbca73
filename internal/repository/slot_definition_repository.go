package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labubou/TAConnect-sub000/internal/model"
	"github.com/labubou/TAConnect-sub000/internal/repository/base"
)

const slotDefinitionColumns = `id, instructor_id, course, section, weekday, start_hour, start_minute, end_hour, end_minute, duration_minutes, start_date, end_date, location, is_active, created_at, updated_at`

type SlotDefinitionRepository struct {
	*base.Repository
}

func NewSlotDefinitionRepository(pool *pgxpool.Pool) *SlotDefinitionRepository {
	return &SlotDefinitionRepository{Repository: base.NewRepository(pool)}
}

// Create stores a new slot definition.
func (r *SlotDefinitionRepository) Create(ctx context.Context, def *model.SlotDefinition) error {
	query := `
		INSERT INTO slot_definitions (instructor_id, course, section, weekday, start_hour, start_minute, end_hour, end_minute, duration_minutes, start_date, end_date, location, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		def.InstructorID,
		def.Course,
		def.Section,
		int(def.Weekday),
		def.StartHour,
		def.StartMinute,
		def.EndHour,
		def.EndMinute,
		def.DurationMinutes,
		def.StartDate,
		def.EndDate,
		def.Location,
		def.IsActive,
	).Scan(&def.ID, &def.CreatedAt, &def.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create slot definition: %w", err)
	}

	return nil
}

// GetByID returns a slot definition, or nil when it does not exist.
func (r *SlotDefinitionRepository) GetByID(ctx context.Context, id int64) (*model.SlotDefinition, error) {
	query := `SELECT ` + slotDefinitionColumns + ` FROM slot_definitions WHERE id = $1`

	def, err := scanSlotDefinition(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot definition by id: %w", err)
	}

	return def, nil
}

// GetByInstructorID returns all slot definitions an instructor owns.
func (r *SlotDefinitionRepository) GetByInstructorID(ctx context.Context, instructorID int64) ([]*model.SlotDefinition, error) {
	query := `
		SELECT ` + slotDefinitionColumns + `
		FROM slot_definitions
		WHERE instructor_id = $1
		ORDER BY weekday, start_hour, start_minute
	`

	rows, err := r.Query(ctx, query, instructorID)
	if err != nil {
		return nil, fmt.Errorf("get slot definitions by instructor: %w", err)
	}
	defer rows.Close()

	var defs []*model.SlotDefinition
	for rows.Next() {
		def, err := scanSlotDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot definition: %w", err)
		}
		defs = append(defs, def)
	}

	return defs, nil
}

// Update replaces the mutable fields of a slot definition.
func (r *SlotDefinitionRepository) Update(ctx context.Context, def *model.SlotDefinition) error {
	query := `
		UPDATE slot_definitions
		SET course = $2, section = $3, weekday = $4, start_hour = $5, start_minute = $6, end_hour = $7, end_minute = $8, duration_minutes = $9, start_date = $10, end_date = $11, location = $12, is_active = $13, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.QueryRow(
		ctx, query,
		def.ID,
		def.Course,
		def.Section,
		int(def.Weekday),
		def.StartHour,
		def.StartMinute,
		def.EndHour,
		def.EndMinute,
		def.DurationMinutes,
		def.StartDate,
		def.EndDate,
		def.Location,
		def.IsActive,
	).Scan(&def.UpdatedAt)

	if err != nil {
		return fmt.Errorf("update slot definition: %w", err)
	}

	return nil
}

// SetActive flips the active flag.
func (r *SlotDefinitionRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE slot_definitions SET is_active = $2, updated_at = now() WHERE id = $1`

	affected, err := r.ExecAffected(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("set slot definition active: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("slot definition not found")
	}

	return nil
}

// Delete removes the definition; the policy and reservations are removed by
// foreign-key cascade.
func (r *SlotDefinitionRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM slot_definitions WHERE id = $1`

	affected, err := r.ExecAffected(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete slot definition: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("slot definition not found")
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlotDefinition(row rowScanner) (*model.SlotDefinition, error) {
	var def model.SlotDefinition
	var weekday int
	err := row.Scan(
		&def.ID,
		&def.InstructorID,
		&def.Course,
		&def.Section,
		&weekday,
		&def.StartHour,
		&def.StartMinute,
		&def.EndHour,
		&def.EndMinute,
		&def.DurationMinutes,
		&def.StartDate,
		&def.EndDate,
		&def.Location,
		&def.IsActive,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	def.Weekday = time.Weekday(weekday)
	return &def, nil
}
