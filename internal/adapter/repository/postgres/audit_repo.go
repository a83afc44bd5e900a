package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/WaldoAlejo/punto-cambio-ledger/internal/domain"
	"github.com/WaldoAlejo/punto-cambio-ledger/internal/usecase"
)

// AuditRepository implements usecase.AuditRepository.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// CreateTx inserts an audit log entry inside the transaction of the
// administrative mutation it records.
func (r *AuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	pgxTx := tx.(*Tx).PgxTx()

	var beforeState, afterState []byte
	var err error

	if log.BeforeState != nil {
		beforeState, err = json.Marshal(log.BeforeState)
		if err != nil {
			return err
		}
	}

	if log.AfterState != nil {
		afterState, err = json.Marshal(log.AfterState)
		if err != nil {
			return err
		}
	}

	_, err = pgxTx.Exec(ctx, `
		INSERT INTO audit_logs (
			id, actor_id, action, point_id, currency_id,
			resource_type, resource_id, before_state, after_state,
			detail, created_at
		) VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11)`,
		log.ID,
		log.ActorID,
		log.Action,
		log.PointID,
		log.CurrencyID,
		log.ResourceType,
		log.ResourceID,
		beforeState,
		afterState,
		log.Detail,
		timeToPgTimestamptz(log.CreatedAt),
	)

	return err
}

// ListByResource retrieves audit entries for one resource, newest first.
func (r *AuditRepository) ListByResource(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_id, action, point_id, currency_id,
		       resource_type, resource_id, before_state, after_state,
		       detail, created_at
		FROM audit_logs
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY created_at DESC`,
		resourceType, resourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*domain.AuditLog
	for rows.Next() {
		var (
			l           domain.AuditLog
			actor       pgtype.Text
			detail      pgtype.Text
			beforeState []byte
			afterState  []byte
			createdAt   pgtype.Timestamptz
		)

		err := rows.Scan(
			&l.ID, &actor, &l.Action, &l.PointID, &l.CurrencyID,
			&l.ResourceType, &l.ResourceID, &beforeState, &afterState,
			&detail, &createdAt,
		)
		if err != nil {
			return nil, err
		}

		if beforeState != nil {
			_ = json.Unmarshal(beforeState, &l.BeforeState)
		}
		if afterState != nil {
			_ = json.Unmarshal(afterState, &l.AfterState)
		}
		l.ActorID = actor.String
		l.Detail = detail.String
		l.CreatedAt = createdAt.Time

		logs = append(logs, &l)
	}

	return logs, rows.Err()
}
