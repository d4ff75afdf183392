package chain

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
)

// simulatedBalance funds the generated deployer key (1000 ether).
var simulatedBalance = new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))

// NewSimulated creates a client backed by an in-process chain with a freshly
// generated, funded deployer key. Blocks are mined as transactions arrive.
func NewSimulated(ctx context.Context, artifacts ArtifactSource, cfg EVMConfig, logger *slog.Logger) (*EVMClient, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, NewChainError("NewSimulated", "", "", "generate key", err)
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	backend := simulated.NewBackend(types.GenesisAlloc{
		from: {Balance: simulatedBalance},
	})

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	// The simulated chain reports its own ID.
	cfg.ChainID = 0

	c, err := NewEVMClient(ctx, backend.Client(), key, artifacts, cfg, logger)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	c.miner = backend
	c.close = backend.Close
	return c, nil
}
