package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/rl1809/med-provenance/internal/core/domain"
	"github.com/rl1809/med-provenance/internal/port"
)

// Signer is the signing context handed out by KeyWallet.
type Signer struct {
	opts *bind.TransactOpts
}

func (s *Signer) Account() string {
	return s.opts.From.Hex()
}

func (s *Signer) transactOpts(ctx context.Context) *bind.TransactOpts {
	opts := *s.opts
	opts.Context = ctx
	return &opts
}

// KeyWallet authorizes a single operator account from a private key.
type KeyWallet struct {
	key     *ecdsa.PrivateKey
	chainID *big.Int
}

// NewKeyWallet parses a hex private key. An empty key yields a wallet whose
// Connect always reports domain.ErrWalletUnavailable.
func NewKeyWallet(hexKey string, chainID *big.Int) (*KeyWallet, error) {
	w := &KeyWallet{chainID: chainID}
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return w, nil
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse wallet key: %w", err)
	}
	w.key = key
	return w, nil
}

func (w *KeyWallet) Connect(ctx context.Context) (port.SigningContext, error) {
	if w == nil || w.key == nil {
		return nil, fmt.Errorf("%w: no signing key configured", domain.ErrWalletUnavailable)
	}
	if w.chainID == nil {
		return nil, fmt.Errorf("%w: chain id unknown", domain.ErrWalletUnavailable)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, w.chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrWalletUnavailable, err)
	}
	return &Signer{opts: opts}, nil
}
