package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// DefaultGasLimit is the fixed gas limit used for simulations and submissions.
const DefaultGasLimit uint64 = 2_000_000

// ErrNoKey is returned when a signing operation is attempted without a key.
var ErrNoKey = errors.New("no bot key configured")

// Backend is the chain surface the transactor drives.
type Backend interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Transactor signs and submits calls from the bot's account.
type Transactor struct {
	backend  Backend
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gasLimit uint64
}

// NewTransactor parses the hex key. An empty key yields a read-only transactor
// that can simulate from the zero address but not submit.
func NewTransactor(backend Backend, hexKey string, chainID *big.Int, gasLimit uint64) (*Transactor, error) {
	if gasLimit == 0 {
		gasLimit = DefaultGasLimit
	}
	t := &Transactor{backend: backend, chainID: chainID, gasLimit: gasLimit}

	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return t, nil
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	t.key = key
	t.from = crypto.PubkeyToAddress(key.PublicKey)
	return t, nil
}

// From returns the bot's address.
func (t *Transactor) From() common.Address {
	return t.from
}

// CanSign reports whether a key is loaded.
func (t *Transactor) CanSign() bool {
	return t.key != nil
}

// Simulate dry-runs a call with eth_estimateGas at the fixed gas limit.
func (t *Transactor) Simulate(ctx context.Context, to common.Address, data []byte) (uint64, error) {
	return t.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: t.from,
		To:   &to,
		Gas:  t.gasLimit,
		Data: data,
	})
}

// Submit signs, broadcasts and waits for the call to be mined.
func (t *Transactor) Submit(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	if t.key == nil {
		return common.Hash{}, ErrNoKey
	}

	opts, err := bind.NewKeyedTransactorWithChainID(t.key, t.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("build transactor: %w", err)
	}

	nonce, err := t.backend.PendingNonceAt(ctx, t.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	gasPrice, err := t.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      t.gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := opts.Signer(t.from, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign tx: %w", err)
	}

	if err := t.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send tx: %w", err)
	}
	if _, err := t.backend.WaitMined(ctx, signed); err != nil {
		return signed.Hash(), err
	}
	return signed.Hash(), nil
}
