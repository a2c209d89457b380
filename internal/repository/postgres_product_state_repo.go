package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/passalarm/internal/model"
)

// PostgresProductStateRepo はPostgreSQLを使用したパス在庫状態リポジトリ。
type PostgresProductStateRepo struct {
	db *sql.DB
}

// NewPostgresProductStateRepo はPostgresProductStateRepoを生成する。
func NewPostgresProductStateRepo(db *sql.DB) *PostgresProductStateRepo {
	return &PostgresProductStateRepo{db: db}
}

// List は全パスの現在状態を返す。
func (r *PostgresProductStateRepo) List(ctx context.Context) ([]*model.ProductState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, status, previous_status, source, checked_at
		 FROM product_states ORDER BY product_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list product states: %w", err)
	}
	defer rows.Close()

	var states []*model.ProductState
	for rows.Next() {
		state := &model.ProductState{}
		if err := rows.Scan(&state.ProductID, &state.Status, &state.PreviousStatus, &state.Source, &state.CheckedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product state: %w", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate product states: %w", err)
	}
	return states, nil
}

// FindByProductID は指定パスの状態を取得する。見つからない場合はnilを返す。
func (r *PostgresProductStateRepo) FindByProductID(ctx context.Context, productID string) (*model.ProductState, error) {
	state := &model.ProductState{}
	err := r.db.QueryRowContext(ctx,
		`SELECT product_id, status, previous_status, source, checked_at
		 FROM product_states WHERE product_id = $1`,
		productID,
	).Scan(&state.ProductID, &state.Status, &state.PreviousStatus, &state.Source, &state.CheckedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find product state: %w", err)
	}
	return state, nil
}

// Apply は確認結果をlast-write-winsで反映し、更新後の状態を返す。
// 既存行のchecked_atの方が新しい場合は反映せずnilを返す（stale write）。
// previous_statusには反映前のstatusが自動的に記録されるため、
// 呼び出し元は戻り値のBecameAvailable()で遷移エッジを判定できる。
func (r *PostgresProductStateRepo) Apply(ctx context.Context, productID string, status model.AvailabilityStatus, source model.StateSource, checkedAt time.Time) (*model.ProductState, error) {
	state := &model.ProductState{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO product_states (product_id, status, previous_status, source, checked_at)
		 VALUES ($1, $2, $2, $3, $4)
		 ON CONFLICT (product_id) DO UPDATE SET
			status = EXCLUDED.status,
			previous_status = product_states.status,
			source = EXCLUDED.source,
			checked_at = EXCLUDED.checked_at
		 WHERE product_states.checked_at <= EXCLUDED.checked_at
		 RETURNING product_id, status, previous_status, source, checked_at`,
		productID, string(status), string(source), checkedAt,
	).Scan(&state.ProductID, &state.Status, &state.PreviousStatus, &state.Source, &state.CheckedAt)

	if err == sql.ErrNoRows {
		// より新しい書き込みが先行していた
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to apply product state: %w", err)
	}
	return state, nil
}

// compile-time interface check
var _ ProductStateRepository = (*PostgresProductStateRepo)(nil)
