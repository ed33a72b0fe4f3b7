package port

import (
	"context"

	"github.com/rl1809/med-provenance/internal/core/domain"
)

// SigningContext is the ledger account a wallet has authorized for a session.
type SigningContext interface {
	Account() string
}

type Wallet interface {
	// Connect requests account authorization, returns domain.ErrWalletUnavailable if none can be granted
	Connect(ctx context.Context) (SigningContext, error)
}

type Ledger interface {
	// Submit sends the registration call signed by signer
	Submit(ctx context.Context, signer SigningContext, fields domain.ProductFields) (domain.Submission, error)

	// Confirm blocks until the submission is included or the confirmation timeout elapses
	Confirm(ctx context.Context, submission domain.Submission) (domain.Confirmation, error)
}

// LedgerScanner is the read side used for reconciliation only; verification never reads the ledger.
type LedgerScanner interface {
	Head(ctx context.Context) (uint64, error)

	// Registrations returns ProductAdded events in the inclusive block range
	Registrations(ctx context.Context, fromBlock, toBlock uint64) ([]domain.RegistrationEvent, error)

	// Product reads a product by the contract's own id
	Product(ctx context.Context, contractID uint64) (domain.ProductFields, string, error)
}
