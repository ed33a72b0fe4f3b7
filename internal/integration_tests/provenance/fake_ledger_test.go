package provenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rl1809/med-provenance/internal/core/domain"
	"github.com/rl1809/med-provenance/internal/port"
)

const testOwner = "0x00000000000000000000000000000000000000aa"

type signer struct{}

func (signer) Account() string { return testOwner }

// fakeChain is an in-process ledger: every submission is mined into its own
// block and emits a ProductAdded event.
type fakeChain struct {
	mu       sync.Mutex
	nextID   uint64
	block    uint64
	pending  map[string]domain.RegistrationEvent
	events   []domain.RegistrationEvent
	products map[uint64]domain.ProductFields
}

func newFakeChain(firstID uint64) *fakeChain {
	return &fakeChain{
		nextID:   firstID,
		block:    100,
		pending:  make(map[string]domain.RegistrationEvent),
		products: make(map[uint64]domain.ProductFields),
	}
}

func (c *fakeChain) Connect(ctx context.Context) (port.SigningContext, error) {
	return signer{}, nil
}

func (c *fakeChain) Submit(ctx context.Context, s port.SigningContext, fields domain.ProductFields) (domain.Submission, error) {
	if err := fields.Validate(); err != nil {
		return domain.Submission{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.block++
	id := c.nextID
	c.nextID++
	tx := fmt.Sprintf("0x%064x", id)
	ev := domain.RegistrationEvent{ContractID: id, Name: fields.Name, Owner: s.Account(), BlockNumber: c.block, TxHash: tx}
	c.pending[tx] = ev
	c.events = append(c.events, ev)
	c.products[id] = fields
	return domain.Submission{TxHash: tx, Account: s.Account(), SubmittedAt: time.Now()}, nil
}

func (c *fakeChain) Confirm(ctx context.Context, sub domain.Submission) (domain.Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev, ok := c.pending[sub.TxHash]
	if !ok {
		return domain.Confirmation{}, domain.ErrSubmissionRejected
	}
	return domain.Confirmation{
		Identifier:  ev.Identifier(domain.IdentifierFromEvent),
		BlockNumber: ev.BlockNumber,
		ContractID:  ev.ContractID,
		TxHash:      ev.TxHash,
		Owner:       ev.Owner,
	}, nil
}

func (c *fakeChain) Head(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.block, nil
}

func (c *fakeChain) Registrations(ctx context.Context, from, to uint64) ([]domain.RegistrationEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []domain.RegistrationEvent
	for _, ev := range c.events {
		if ev.BlockNumber >= from && ev.BlockNumber <= to {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (c *fakeChain) Product(ctx context.Context, contractID uint64) (domain.ProductFields, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fields, ok := c.products[contractID]
	if !ok {
		return domain.ProductFields{}, "", domain.ErrNotFound
	}
	return fields, testOwner, nil
}

// flakyMirror fails writes while down is set.
type flakyMirror struct {
	port.MirrorRepository
	mu   sync.Mutex
	down bool
}

func (m *flakyMirror) setDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

func (m *flakyMirror) Store(ctx context.Context, record *domain.ProductRecord) error {
	m.mu.Lock()
	down := m.down
	m.mu.Unlock()
	if down {
		return fmt.Errorf("mirror unreachable")
	}
	return m.MirrorRepository.Store(ctx, record)
}
