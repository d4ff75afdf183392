package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/artpar/deployer/internal/core/domain"
)

// =============================================================================
// Backend
// =============================================================================

// Backend is the subset of an Ethereum RPC client used for deployments.
// Both *ethclient.Client and the simulated backend's client satisfy it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// committer mines pending transactions on demand (simulated chains only).
type committer interface {
	Commit() common.Hash
}

// =============================================================================
// Configuration
// =============================================================================

// EVMConfig configures an EVM chain client.
type EVMConfig struct {
	RPCURL          string
	PrivateKey      string        // hex, with or without 0x
	ChainID         uint64        // expected chain ID; 0 accepts whatever the node reports
	Confirmations   uint64        // blocks including the receipt's block
	FinalizeTimeout time.Duration // 0 waits until ctx is done
	PollInterval    time.Duration
	GasLimit        uint64 // 0 estimates per deployment
}

// DefaultEVMConfig returns defaults suitable for a local development node.
func DefaultEVMConfig() EVMConfig {
	return EVMConfig{
		RPCURL:          "http://127.0.0.1:8545",
		Confirmations:   1,
		FinalizeTimeout: 5 * time.Minute,
		PollInterval:    2 * time.Second,
	}
}

// =============================================================================
// EVM Client
// =============================================================================

// EVMClient deploys contract artifacts to an EVM chain.
type EVMClient struct {
	backend   Backend
	artifacts ArtifactSource
	opts      *bind.TransactOpts
	chainID   *big.Int
	cfg       EVMConfig
	logger    *slog.Logger

	miner committer
	close func() error
}

// Ensure EVMClient implements Client.
var _ Client = (*EVMClient)(nil)

// Dial connects to cfg.RPCURL and returns a client signing with cfg.PrivateKey.
func Dial(ctx context.Context, cfg EVMConfig, artifacts ArtifactSource, logger *slog.Logger) (*EVMClient, error) {
	key, err := ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, NewChainError("Dial", "", "", cfg.RPCURL, fmt.Errorf("%w: %v", ErrConnectionFailed, err))
	}

	c, err := NewEVMClient(ctx, rpc, key, artifacts, cfg, logger)
	if err != nil {
		rpc.Close()
		return nil, err
	}
	c.close = func() error {
		rpc.Close()
		return nil
	}
	return c, nil
}

// NewEVMClient creates a client over an existing backend.
func NewEVMClient(ctx context.Context, backend Backend, key *ecdsa.PrivateKey, artifacts ArtifactSource, cfg EVMConfig, logger *slog.Logger) (*EVMClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultEVMConfig().PollInterval
	}
	if cfg.Confirmations == 0 {
		cfg.Confirmations = 1
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, NewChainError("ChainID", "", "", "query chain ID", fmt.Errorf("%w: %v", ErrConnectionFailed, err))
	}
	if cfg.ChainID != 0 && chainID.Uint64() != cfg.ChainID {
		return nil, NewChainError("ChainID", "", "",
			fmt.Sprintf("node reports %s, configured %d", chainID, cfg.ChainID), ErrChainIDMismatch)
	}

	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, NewChainError("NewEVMClient", "", "", "create transactor", fmt.Errorf("%w: %v", ErrInvalidKey, err))
	}

	return &EVMClient{
		backend:   backend,
		artifacts: artifacts,
		opts:      opts,
		chainID:   chainID,
		cfg:       cfg,
		logger:    logger.With("component", "chain", "chain_id", chainID.String()),
	}, nil
}

// ParsePrivateKey decodes a hex secp256k1 key.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, NewChainError("ParsePrivateKey", "", "", "no private key configured", ErrInvalidKey)
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, NewChainError("ParsePrivateKey", "", "", err.Error(), ErrInvalidKey)
	}
	return key, nil
}

// Close releases the underlying connection.
func (c *EVMClient) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// CurrentIdentity returns the deployer account and chain ID.
func (c *EVMClient) CurrentIdentity(ctx context.Context) (domain.Identity, error) {
	return domain.Identity{
		Account:   domain.Address(c.opts.From.Hex()),
		NetworkID: c.chainID.String(),
	}, nil
}

// Instantiate signs and sends a contract creation transaction. It returns
// once the node has accepted the transaction.
func (c *EVMClient) Instantiate(ctx context.Context, template string, args []domain.Value) (PendingHandle, error) {
	artifact, err := c.artifacts.Artifact(template)
	if err != nil {
		return PendingHandle{}, NewChainError("Instantiate", template, "", "load artifact", err)
	}

	encoded, err := EncodeConstructorArgs(artifact, args)
	if err != nil {
		return PendingHandle{}, NewChainError("Instantiate", template, "", "encode constructor arguments", err)
	}
	data := append(append([]byte{}, artifact.Bytecode...), encoded...)

	from := c.opts.From
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return PendingHandle{}, NewChainError("Instantiate", template, "", "get nonce", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return PendingHandle{}, NewChainError("Instantiate", template, "", "get gas price", err)
	}

	gasLimit := c.cfg.GasLimit
	if gasLimit == 0 {
		gasLimit, err = c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, GasPrice: gasPrice, Data: data})
		if err != nil {
			return PendingHandle{}, NewChainError("Instantiate", template, "", "estimate gas", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		Data:     data,
	})
	signed, err := c.opts.Signer(from, tx)
	if err != nil {
		return PendingHandle{}, NewChainError("Instantiate", template, "", "sign transaction", err)
	}

	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return PendingHandle{}, NewChainError("Instantiate", template, signed.Hash().Hex(), "send transaction",
			fmt.Errorf("%w: %v", ErrSubmitRejected, err))
	}

	handle := PendingHandle{
		Template:  template,
		TxHash:    signed.Hash().Hex(),
		Predicted: domain.Address(crypto.CreateAddress(from, nonce).Hex()),
	}
	c.logger.Debug("deployment submitted",
		"template", template,
		"tx", handle.TxHash,
		"nonce", nonce,
		"gas", gasLimit,
		"predicted_address", handle.Predicted)

	if c.miner != nil {
		c.miner.Commit()
	}
	return handle, nil
}

// AwaitFinalized polls for the receipt until it has the configured number of
// confirmations. A reverted transaction or an address without code fails.
func (c *EVMClient) AwaitFinalized(ctx context.Context, handle PendingHandle) (domain.Finalization, error) {
	if handle.TxHash == "" {
		return domain.Finalization{}, NewChainError("AwaitFinalized", handle.Template, "", "empty transaction hash", ErrUnknownHandle)
	}

	waitCtx := ctx
	if c.cfg.FinalizeTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.cfg.FinalizeTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	hash := common.HexToHash(handle.TxHash)
	for {
		fin, done, err := c.checkFinalized(waitCtx, handle, hash)
		if err != nil {
			return domain.Finalization{}, err
		}
		if done {
			c.logger.Debug("deployment finalized",
				"template", handle.Template,
				"tx", handle.TxHash,
				"address", fin.Address,
				"block", fin.BlockNumber)
			return fin, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return domain.Finalization{}, NewChainError("AwaitFinalized", handle.Template, handle.TxHash,
					fmt.Sprintf("not final after %s", c.cfg.FinalizeTimeout), ErrTimeout)
			}
			return domain.Finalization{}, NewChainError("AwaitFinalized", handle.Template, handle.TxHash,
				"wait cancelled", ctx.Err())
		case <-ticker.C:
			if c.miner != nil {
				c.miner.Commit()
			}
		}
	}
}

func (c *EVMClient) checkFinalized(ctx context.Context, handle PendingHandle, hash common.Hash) (domain.Finalization, bool, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, hash)
	if err != nil {
		if !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
			c.logger.Debug("receipt lookup failed", "tx", handle.TxHash, "error", err)
		}
		return domain.Finalization{}, false, nil
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.Finalization{}, false, NewChainError("AwaitFinalized", handle.Template, handle.TxHash,
			fmt.Sprintf("reverted in block %s", receipt.BlockNumber), ErrReverted)
	}

	head, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return domain.Finalization{}, false, nil
	}
	included := receipt.BlockNumber.Uint64()
	if head < included {
		return domain.Finalization{}, false, nil
	}
	confirmations := head - included + 1
	if confirmations < c.cfg.Confirmations {
		return domain.Finalization{}, false, nil
	}

	code, err := c.backend.CodeAt(ctx, receipt.ContractAddress, nil)
	if err != nil {
		return domain.Finalization{}, false, nil
	}
	if len(code) == 0 {
		return domain.Finalization{}, false, NewChainError("AwaitFinalized", handle.Template, handle.TxHash,
			receipt.ContractAddress.Hex(), ErrNoCode)
	}

	return domain.Finalization{
		Address:       domain.Address(receipt.ContractAddress.Hex()),
		TxHash:        receipt.TxHash.Hex(),
		BlockNumber:   included,
		Confirmations: confirmations,
		GasUsed:       receipt.GasUsed,
	}, true, nil
}
