package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rl1809/med-provenance/internal/core/domain"
	"github.com/rl1809/med-provenance/internal/port"
)

type mockSigner string

func (m mockSigner) Account() string { return string(m) }

type mockWallet struct {
	account string
	err     error
}

func (m *mockWallet) Connect(ctx context.Context) (port.SigningContext, error) {
	if m.err != nil {
		return nil, m.err
	}
	return mockSigner(m.account), nil
}

// mockLedger confirms every submission with the next identifier.
type mockLedger struct {
	mu          sync.Mutex
	nextID      uint64
	block       uint64
	submitErr   error
	confirmErr  error
	submissions []domain.ProductFields
	products    map[uint64]domain.ProductFields
	events      []domain.RegistrationEvent
	head        uint64
}

func newMockLedger(firstID uint64) *mockLedger {
	return &mockLedger{nextID: firstID, block: 500, products: make(map[uint64]domain.ProductFields)}
}

func (m *mockLedger) Submit(ctx context.Context, signer port.SigningContext, fields domain.ProductFields) (domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.submitErr != nil {
		return domain.Submission{}, m.submitErr
	}
	m.submissions = append(m.submissions, fields)
	m.products[m.nextID] = fields
	return domain.Submission{
		TxHash:      fmt.Sprintf("0xtx%d", m.nextID),
		Account:     signer.Account(),
		SubmittedAt: time.Now(),
	}, nil
}

func (m *mockLedger) Confirm(ctx context.Context, sub domain.Submission) (domain.Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.confirmErr != nil {
		return domain.Confirmation{}, m.confirmErr
	}
	id := m.nextID
	m.nextID++
	m.block++
	m.events = append(m.events, domain.RegistrationEvent{
		ContractID:  id,
		Name:        m.products[id].Name,
		Owner:       sub.Account,
		BlockNumber: m.block,
		TxHash:      sub.TxHash,
	})
	return domain.Confirmation{
		Identifier:  id,
		BlockNumber: m.block,
		ContractID:  id,
		TxHash:      sub.TxHash,
		Owner:       sub.Account,
	}, nil
}

func (m *mockLedger) Head(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.head != 0 {
		return m.head, nil
	}
	return m.block, nil
}

func (m *mockLedger) Registrations(ctx context.Context, fromBlock, toBlock uint64) ([]domain.RegistrationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.RegistrationEvent
	for _, ev := range m.events {
		if ev.BlockNumber >= fromBlock && ev.BlockNumber <= toBlock {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (m *mockLedger) Product(ctx context.Context, contractID uint64) (domain.ProductFields, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fields, ok := m.products[contractID]
	if !ok {
		return domain.ProductFields{}, "", errors.New("unknown product")
	}
	return fields, "0xowner", nil
}

func (m *mockLedger) submissionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submissions)
}

// mockMirror keeps every stored row, duplicates included.
type mockMirror struct {
	mu       sync.Mutex
	rows     []domain.ProductRecord
	storeErr error
	stores   int
	fetches  int
}

func (m *mockMirror) Store(ctx context.Context, record *domain.ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stores++
	if m.storeErr != nil {
		return m.storeErr
	}
	record.AddedAt = time.Now().UTC()
	m.rows = append(m.rows, *record)
	return nil
}

func (m *mockMirror) Fetch(ctx context.Context, identifier uint64) (*domain.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetches++
	for _, r := range m.rows {
		if r.Identifier == identifier {
			rec := r
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockMirror) calls() (stores, fetches int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stores, m.fetches
}

type mockCache struct {
	mu          sync.Mutex
	records     map[uint64]domain.ProductRecord
	idempotency map[string]bool
	gets        int
}

func newMockCache() *mockCache {
	return &mockCache{
		records:     make(map[uint64]domain.ProductRecord),
		idempotency: make(map[string]bool),
	}
}

func (m *mockCache) GetRecord(ctx context.Context, identifier uint64) (*domain.ProductRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gets++
	r, ok := m.records[identifier]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *mockCache) SetRecord(ctx context.Context, record domain.ProductRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.Identifier] = record
	return nil
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotency[key] {
		return false, nil
	}
	m.idempotency[key] = true
	return true, nil
}

func (m *mockCache) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotency, key)
	return nil
}

type mockCodec struct{}

func (mockCodec) Payload(baseURL string, identifier uint64) (string, error) {
	if baseURL == "" {
		return "", domain.ErrInvalidToken
	}
	return baseURL + "/verify?productId=" + strconv.FormatUint(identifier, 10), nil
}

func (c mockCodec) Encode(baseURL string, identifier uint64) ([]byte, error) {
	p, err := c.Payload(baseURL, identifier)
	if err != nil {
		return nil, err
	}
	return []byte(p), nil
}

func (mockCodec) ParseIdentifier(rawURL string) (uint64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, domain.ErrInvalidToken
	}
	id, err := strconv.ParseUint(u.Query().Get("productId"), 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidToken
	}
	return id, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []domain.ProductRecord
	err    error
}

func (m *mockPublisher) PublishRegistered(ctx context.Context, record domain.ProductRecord, conf domain.Confirmation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, record)
	return nil
}
