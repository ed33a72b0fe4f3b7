package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/rl1809/med-provenance/internal/core/domain"
)

// PostgresAdapter is the PostgreSQL mirror backend.
type PostgresAdapter struct {
	db    *sql.DB
	clock Clock
}

func NewPostgresAdapter(db *sql.DB, clock Clock) *PostgresAdapter {
	if clock == nil {
		clock = time.Now
	}
	return &PostgresAdapter{db: db, clock: clock}
}

func (p *PostgresAdapter) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create products table: %w", err)
	}
	return nil
}

func (p *PostgresAdapter) Store(ctx context.Context, record *domain.ProductRecord) error {
	addedAt := p.clock().UTC()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO products (product_id, name, production_date, expiry_date, medical_info, owner, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		int64(record.Identifier), record.Name, record.ProductionDate, record.ExpiryDate,
		record.MedicalInfo, record.Owner, addedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			return fmt.Errorf("insert product (%s): %w", pqErr.Code.Name(), err)
		}
		return fmt.Errorf("insert product: %w", err)
	}

	record.AddedAt = addedAt
	return nil
}

func (p *PostgresAdapter) Fetch(ctx context.Context, identifier uint64) (*domain.ProductRecord, error) {
	var (
		rec domain.ProductRecord
		id  int64
	)
	err := p.db.QueryRowContext(ctx, `
		SELECT product_id, name, production_date, expiry_date, medical_info, owner, added_at
		FROM products WHERE product_id = $1
		ORDER BY id LIMIT 1`, int64(identifier),
	).Scan(&id, &rec.Name, &rec.ProductionDate, &rec.ExpiryDate,
		&rec.MedicalInfo, &rec.Owner, &rec.AddedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	rec.Identifier = uint64(id)
	rec.AddedAt = rec.AddedAt.UTC()
	return &rec, nil
}
