package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/qhosting/provisioning-service/internal/models"
)

type LogRepository struct {
	pool *pgxpool.Pool
}

func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

// Create appends a provisioning audit entry for a service
func (r *LogRepository) Create(ctx context.Context, entry *models.ProvisionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO provisioning.provision_logs (id, service_id, action, status, message)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.ServiceID, entry.Action, entry.Status, entry.Message,
	)
	if err != nil {
		return fmt.Errorf("insert provision log: %w", err)
	}

	return nil
}

// GetByServiceID retrieves audit entries for a service, newest first
func (r *LogRepository) GetByServiceID(ctx context.Context, serviceID string, limit int) ([]*models.ProvisionLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, service_id, action, status, message, created_at
		FROM provisioning.provision_logs
		WHERE service_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, serviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query provision logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.ProvisionLog
	for rows.Next() {
		entry := &models.ProvisionLog{}
		err := rows.Scan(
			&entry.ID, &entry.ServiceID, &entry.Action, &entry.Status,
			&entry.Message, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan provision log row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
