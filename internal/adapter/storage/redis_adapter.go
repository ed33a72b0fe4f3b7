package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/med-provenance/internal/core/domain"
)

const (
	productKeyPrefix  = "product:"
	idempotencyKeyTTL = 24 * time.Hour
)

type cachedRecord struct {
	Identifier     uint64    `json:"identifier"`
	Name           string    `json:"name"`
	ProductionDate string    `json:"productionDate"`
	ExpiryDate     string    `json:"expiryDate"`
	MedicalInfo    string    `json:"medicalInfo"`
	Owner          string    `json:"owner"`
	AddedAt        time.Time `json:"addedAt"`
}

type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisAdapter caches mirrored records for ttl; zero keeps them forever.
func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	return &RedisAdapter{client: client, ttl: ttl}
}

func productKey(identifier uint64) string {
	return productKeyPrefix + strconv.FormatUint(identifier, 10)
}

func (r *RedisAdapter) GetRecord(ctx context.Context, identifier uint64) (*domain.ProductRecord, error) {
	data, err := r.client.Get(ctx, productKey(identifier)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var c cachedRecord
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cached product: %w", err)
	}
	return &domain.ProductRecord{
		Identifier: c.Identifier,
		ProductFields: domain.ProductFields{
			Name:           c.Name,
			ProductionDate: c.ProductionDate,
			ExpiryDate:     c.ExpiryDate,
			MedicalInfo:    c.MedicalInfo,
		},
		Owner:   c.Owner,
		AddedAt: c.AddedAt,
	}, nil
}

// SetRecord keeps the first cached copy; mirror reads also return the earliest row.
func (r *RedisAdapter) SetRecord(ctx context.Context, record domain.ProductRecord) error {
	data, err := json.Marshal(cachedRecord{
		Identifier:     record.Identifier,
		Name:           record.Name,
		ProductionDate: record.ProductionDate,
		ExpiryDate:     record.ExpiryDate,
		MedicalInfo:    record.MedicalInfo,
		Owner:          record.Owner,
		AddedAt:        record.AddedAt,
	})
	if err != nil {
		return err
	}
	return r.client.SetNX(ctx, productKey(record.Identifier), data, r.ttl).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}
