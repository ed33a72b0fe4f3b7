package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/med-provenance/internal/core/domain"
)

// Clock returns the time used to stamp AddedAt.
type Clock func() time.Time

type MySQLAdapter struct {
	db    *sql.DB
	clock Clock
}

type MySQLOption func(*MySQLAdapter)

func WithMySQLClock(clock Clock) MySQLOption {
	return func(m *MySQLAdapter) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func NewMySQLAdapter(db *sql.DB, opts ...MySQLOption) *MySQLAdapter {
	m := &MySQLAdapter{db: db, clock: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Migrate creates the products table if it does not exist.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, mysqlSchema); err != nil {
		return fmt.Errorf("create products table: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Store(ctx context.Context, record *domain.ProductRecord) error {
	addedAt := m.clock().UTC()

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO products (product_id, name, production_date, expiry_date, medical_info, owner, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.Identifier, record.Name, record.ProductionDate, record.ExpiryDate,
		record.MedicalInfo, record.Owner, addedAt,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	record.AddedAt = addedAt
	return nil
}

func (m *MySQLAdapter) Fetch(ctx context.Context, identifier uint64) (*domain.ProductRecord, error) {
	var rec domain.ProductRecord
	err := m.db.QueryRowContext(ctx, `
		SELECT product_id, name, production_date, expiry_date, medical_info, owner, added_at
		FROM products WHERE product_id = ?
		ORDER BY id LIMIT 1`, identifier,
	).Scan(&rec.Identifier, &rec.Name, &rec.ProductionDate, &rec.ExpiryDate,
		&rec.MedicalInfo, &rec.Owner, &rec.AddedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	rec.AddedAt = rec.AddedAt.UTC()
	return &rec, nil
}
