package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/erdflow/erdflow-engine/pkg/database"
	"github.com/erdflow/erdflow-engine/pkg/models"
)

// DeploymentRepository provides data access for deployment history records.
// GetByID returns (nil, nil) when no record exists.
type DeploymentRepository interface {
	Create(ctx context.Context, record *models.DeploymentRecord) error
	Update(ctx context.Context, record *models.DeploymentRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.DeploymentRecord, error)
	List(ctx context.Context, limit int) ([]*models.DeploymentRecord, error)
	MarkRolledBack(ctx context.Context, id uuid.UUID, rollbackID uuid.UUID) error
}

type deploymentRepository struct {
	db *database.DB
}

// NewDeploymentRepository creates a new DeploymentRepository.
func NewDeploymentRepository(db *database.DB) DeploymentRepository {
	return &deploymentRepository{db: db}
}

var _ DeploymentRepository = (*deploymentRepository)(nil)

func (r *deploymentRepository) Create(ctx context.Context, record *models.DeploymentRecord) error {
	stepsJSON, createdJSON, err := marshalDeploymentFields(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO engine_deployments (
			id, status, steps, created_objects, error, rollback_id, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.Exec(ctx, query,
		record.ID, record.Status, stepsJSON, createdJSON,
		nullableString(record.Error), record.RollbackID, record.CreatedAt, record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create deployment record: %w", err)
	}

	return nil
}

func (r *deploymentRepository) Update(ctx context.Context, record *models.DeploymentRecord) error {
	stepsJSON, createdJSON, err := marshalDeploymentFields(record)
	if err != nil {
		return err
	}

	query := `
		UPDATE engine_deployments
		SET status = $2, steps = $3, created_objects = $4, error = $5, completed_at = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		record.ID, record.Status, stepsJSON, createdJSON,
		nullableString(record.Error), record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update deployment record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deployment %s not found", record.ID)
	}

	return nil
}

func (r *deploymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DeploymentRecord, error) {
	query := `
		SELECT id, status, steps, created_objects, error, rollback_id, created_at, completed_at
		FROM engine_deployments
		WHERE id = $1`

	record, err := scanDeploymentRow(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (r *deploymentRepository) List(ctx context.Context, limit int) ([]*models.DeploymentRecord, error) {
	if limit <= 0 {
		limit = 50 // Default limit
	}

	query := `
		SELECT id, status, steps, created_objects, error, rollback_id, created_at, completed_at
		FROM engine_deployments
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()

	records := make([]*models.DeploymentRecord, 0)
	for rows.Next() {
		record, err := scanDeploymentRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating deployments: %w", err)
	}

	return records, nil
}

func (r *deploymentRepository) MarkRolledBack(ctx context.Context, id uuid.UUID, rollbackID uuid.UUID) error {
	// Guarded against double-rollback: the update only lands when no
	// rollback has consumed the record yet.
	query := `
		UPDATE engine_deployments
		SET rollback_id = $2
		WHERE id = $1 AND rollback_id IS NULL`

	tag, err := r.db.Exec(ctx, query, id, rollbackID)
	if err != nil {
		return fmt.Errorf("failed to mark deployment rolled back: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deployment %s not found or already rolled back", id)
	}

	return nil
}

// ============================================================================
// Helper Functions - Marshal / Scan
// ============================================================================

func marshalDeploymentFields(record *models.DeploymentRecord) (stepsJSON, createdJSON []byte, err error) {
	stepsJSON, err = json.Marshal(record.Steps)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal steps: %w", err)
	}
	if record.Steps == nil {
		stepsJSON = []byte("[]")
	}

	createdJSON, err = json.Marshal(record.CreatedObjects)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal created_objects: %w", err)
	}

	return stepsJSON, createdJSON, nil
}

func scanDeploymentRow(row pgx.Row) (*models.DeploymentRecord, error) {
	var record models.DeploymentRecord
	var stepsJSON, createdJSON []byte
	var errMsg *string

	err := row.Scan(
		&record.ID, &record.Status, &stepsJSON, &createdJSON,
		&errMsg, &record.RollbackID, &record.CreatedAt, &record.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan deployment: %w", err)
	}

	if errMsg != nil {
		record.Error = *errMsg
	}

	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &record.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal steps: %w", err)
		}
	}
	if len(createdJSON) > 0 {
		if err := json.Unmarshal(createdJSON, &record.CreatedObjects); err != nil {
			return nil, fmt.Errorf("failed to unmarshal created_objects: %w", err)
		}
	}

	return &record, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
