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

// RollbackRepository provides data access for rollback history records.
// GetByID returns (nil, nil) when no record exists.
type RollbackRepository interface {
	Create(ctx context.Context, record *models.RollbackRecord) error
	Update(ctx context.Context, record *models.RollbackRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RollbackRecord, error)
	GetByDeploymentID(ctx context.Context, deploymentID uuid.UUID) ([]*models.RollbackRecord, error)
}

type rollbackRepository struct {
	db *database.DB
}

// NewRollbackRepository creates a new RollbackRepository.
func NewRollbackRepository(db *database.DB) RollbackRepository {
	return &rollbackRepository{db: db}
}

var _ RollbackRepository = (*rollbackRepository)(nil)

func (r *rollbackRepository) Create(ctx context.Context, record *models.RollbackRecord) error {
	countsJSON, err := marshalCounts(record)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO engine_rollbacks (
			id, deployment_id, status, counts, error, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.Exec(ctx, query,
		record.ID, record.DeploymentID, record.Status, countsJSON,
		nullableString(record.Error), record.StartedAt, record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create rollback record: %w", err)
	}

	return nil
}

func (r *rollbackRepository) Update(ctx context.Context, record *models.RollbackRecord) error {
	countsJSON, err := marshalCounts(record)
	if err != nil {
		return err
	}

	query := `
		UPDATE engine_rollbacks
		SET status = $2, counts = $3, error = $4, completed_at = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		record.ID, record.Status, countsJSON,
		nullableString(record.Error), record.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update rollback record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rollback %s not found", record.ID)
	}

	return nil
}

func (r *rollbackRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RollbackRecord, error) {
	query := `
		SELECT id, deployment_id, status, counts, error, started_at, completed_at
		FROM engine_rollbacks
		WHERE id = $1`

	record, err := scanRollbackRow(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (r *rollbackRepository) GetByDeploymentID(ctx context.Context, deploymentID uuid.UUID) ([]*models.RollbackRecord, error) {
	query := `
		SELECT id, deployment_id, status, counts, error, started_at, completed_at
		FROM engine_rollbacks
		WHERE deployment_id = $1
		ORDER BY started_at DESC`

	rows, err := r.db.Query(ctx, query, deploymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rollbacks for deployment: %w", err)
	}
	defer rows.Close()

	records := make([]*models.RollbackRecord, 0)
	for rows.Next() {
		record, err := scanRollbackRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rollbacks: %w", err)
	}

	return records, nil
}

// ============================================================================
// Helper Functions - Marshal / Scan
// ============================================================================

func marshalCounts(record *models.RollbackRecord) ([]byte, error) {
	countsJSON, err := json.Marshal(record.Counts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal counts: %w", err)
	}
	if record.Counts == nil {
		countsJSON = []byte("{}")
	}
	return countsJSON, nil
}

func scanRollbackRow(row pgx.Row) (*models.RollbackRecord, error) {
	var record models.RollbackRecord
	var countsJSON []byte
	var errMsg *string

	err := row.Scan(
		&record.ID, &record.DeploymentID, &record.Status, &countsJSON,
		&errMsg, &record.StartedAt, &record.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan rollback: %w", err)
	}

	if errMsg != nil {
		record.Error = *errMsg
	}

	if len(countsJSON) > 0 {
		record.Counts = make(map[models.ObjectKind]models.DeletionCounts)
		if err := json.Unmarshal(countsJSON, &record.Counts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal counts: %w", err)
		}
	}

	return &record, nil
}
