package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/rl1809/med-provenance/internal/core/domain"
	"github.com/rl1809/med-provenance/internal/platform/logger"
	"github.com/rl1809/med-provenance/internal/port"
)

const defaultPollInterval = time.Second

// Backend is satisfied by *ethclient.Client.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type contract interface {
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
}

type chain interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

type Config struct {
	Address common.Address
	Scheme  domain.IdentifierScheme
	// ConfirmTimeout bounds Confirm on top of the caller's context.
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	Logger         *slog.Logger
}

// Client talks to the product registry contract.
type Client struct {
	address        common.Address
	abi            abi.ABI
	contract       contract
	chain          chain
	scheme         domain.IdentifierScheme
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger
}

var (
	_ port.Ledger        = (*Client)(nil)
	_ port.LedgerScanner = (*Client)(nil)
	_ port.Wallet        = (*KeyWallet)(nil)
)

type productAdded struct {
	ProductID *big.Int `abi:"productId"`
	Name      string
	Owner     common.Address
}

func NewClient(backend Backend, cfg Config) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}
	bound := bind.NewBoundContract(cfg.Address, parsed, backend, backend, backend)
	return newClient(bound, backend, parsed, cfg), nil
}

func newClient(c contract, ch chain, parsed abi.ABI, cfg Config) *Client {
	client := &Client{
		address:        cfg.Address,
		abi:            parsed,
		contract:       c,
		chain:          ch,
		scheme:         cfg.Scheme,
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
		logger:         cfg.Logger,
	}
	if client.scheme == "" {
		client.scheme = domain.IdentifierFromEvent
	}
	if client.pollInterval <= 0 {
		client.pollInterval = defaultPollInterval
	}
	if client.logger == nil {
		client.logger = logger.Discard()
	}
	if client.scheme == domain.IdentifierFromBlock {
		client.logger.Warn("block-number identifiers collide when two registrations confirm in the same block",
			"contract", client.address.Hex())
	}
	return client
}

func (c *Client) Submit(ctx context.Context, signer port.SigningContext, fields domain.ProductFields) (domain.Submission, error) {
	s, ok := signer.(*Signer)
	if !ok || s == nil {
		return domain.Submission{}, fmt.Errorf("%w: no ledger signer in session", domain.ErrWalletUnavailable)
	}
	if err := fields.Validate(); err != nil {
		return domain.Submission{}, err
	}

	tx, err := c.contract.Transact(s.transactOpts(ctx), methodAddProduct,
		fields.Name, fields.ProductionDate, fields.ExpiryDate, fields.MedicalInfo)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("%w: %w", domain.ErrSubmissionRejected, err)
	}

	return domain.Submission{
		TxHash:      tx.Hash().Hex(),
		Account:     s.Account(),
		SubmittedAt: time.Now().UTC(),
	}, nil
}

// Confirm waits for the receipt and derives the identifier according to the
// configured scheme.
func (c *Client) Confirm(ctx context.Context, sub domain.Submission) (domain.Confirmation, error) {
	if c.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.confirmTimeout)
		defer cancel()
	}

	receipt, err := c.waitMined(ctx, common.HexToHash(sub.TxHash))
	if err != nil {
		return domain.Confirmation{}, fmt.Errorf("%w: tx %s: %w", domain.ErrConfirmationTimeout, sub.TxHash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.Confirmation{}, fmt.Errorf("%w: tx %s reverted in block %s",
			domain.ErrSubmissionRejected, sub.TxHash, receipt.BlockNumber)
	}

	conf := domain.Confirmation{
		BlockNumber: receipt.BlockNumber.Uint64(),
		TxHash:      sub.TxHash,
		Owner:       sub.Account,
	}

	ev := c.findProductAdded(receipt.Logs)
	switch {
	case ev != nil:
		conf.ContractID = ev.ProductID.Uint64()
		conf.Owner = ev.Owner.Hex()
	case c.scheme == domain.IdentifierFromEvent:
		return domain.Confirmation{}, fmt.Errorf("%w: tx %s emitted no %s event",
			domain.ErrSubmissionRejected, sub.TxHash, eventProductAdded)
	}

	if c.scheme == domain.IdentifierFromBlock {
		conf.Identifier = conf.BlockNumber
	} else {
		conf.Identifier = conf.ContractID
	}
	return conf, nil
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.chain.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			c.logger.DebugContext(ctx, "receipt query failed", "tx", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) findProductAdded(logs []*types.Log) *productAdded {
	for _, l := range logs {
		if l == nil || l.Address != c.address {
			continue
		}
		ev, err := c.unpackProductAdded(*l)
		if err == nil {
			return ev
		}
	}
	return nil
}

func (c *Client) unpackProductAdded(l types.Log) (*productAdded, error) {
	event := c.abi.Events[eventProductAdded]
	if len(l.Topics) == 0 || l.Topics[0] != event.ID {
		return nil, fmt.Errorf("log is not %s", eventProductAdded)
	}
	var ev productAdded
	if err := c.abi.UnpackIntoInterface(&ev, eventProductAdded, l.Data); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", eventProductAdded, err)
	}
	if ev.ProductID == nil || !ev.ProductID.IsUint64() {
		return nil, fmt.Errorf("%s productId out of range", eventProductAdded)
	}
	return &ev, nil
}

func (c *Client) Head(ctx context.Context) (uint64, error) {
	return c.chain.BlockNumber(ctx)
}

func (c *Client) Registrations(ctx context.Context, fromBlock, toBlock uint64) ([]domain.RegistrationEvent, error) {
	logs, err := c.chain.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{c.abi.Events[eventProductAdded].ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("filter %s logs: %w", eventProductAdded, err)
	}

	events := make([]domain.RegistrationEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := c.unpackProductAdded(l)
		if err != nil {
			c.logger.WarnContext(ctx, "skipping undecodable log", "tx", l.TxHash.Hex(), "error", err)
			continue
		}
		events = append(events, domain.RegistrationEvent{
			ContractID:  ev.ProductID.Uint64(),
			Name:        ev.Name,
			Owner:       ev.Owner.Hex(),
			BlockNumber: l.BlockNumber,
			TxHash:      l.TxHash.Hex(),
		})
	}
	return events, nil
}

func (c *Client) Product(ctx context.Context, contractID uint64) (domain.ProductFields, string, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, methodGetProduct, new(big.Int).SetUint64(contractID))
	if err != nil {
		return domain.ProductFields{}, "", fmt.Errorf("call %s(%d): %w", methodGetProduct, contractID, err)
	}
	if len(out) != 5 {
		return domain.ProductFields{}, "", fmt.Errorf("%s returned %d values", methodGetProduct, len(out))
	}

	name, ok0 := out[0].(string)
	productionDate, ok1 := out[1].(string)
	expiryDate, ok2 := out[2].(string)
	medicalInfo, ok3 := out[3].(string)
	owner, ok4 := out[4].(common.Address)
	if !ok0 || !ok1 || !ok2 || !ok3 || !ok4 {
		return domain.ProductFields{}, "", fmt.Errorf("%s returned unexpected output types", methodGetProduct)
	}

	fields := domain.ProductFields{
		Name:           name,
		ProductionDate: productionDate,
		ExpiryDate:     expiryDate,
		MedicalInfo:    medicalInfo,
	}
	return fields, owner.Hex(), nil
}
