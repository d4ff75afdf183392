package chain

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	// Creation code returning a single STOP byte as runtime code.
	stopContractCode = "0x6001600c60003960016000f300"
	// Creation code that always reverts.
	revertingCode = "0x60006000fd"

	noArgsABI   = `[]`
	authArgABI  = `[{"type":"constructor","inputs":[{"name":"auth","type":"address"}],"stateMutability":"nonpayable"}]`
	mixedArgABI = `[{"type":"constructor","inputs":[{"name":"owner","type":"address"},{"name":"limit","type":"uint256"},{"name":"label","type":"string"},{"name":"decimals","type":"uint8"}],"stateMutability":"nonpayable"}]`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustArtifact(t *testing.T, name, abiJSON, code string) *Artifact {
	t.Helper()
	a, err := NewArtifact(name, abiJSON, code)
	require.NoError(t, err)
	return a
}

func testArtifacts(t *testing.T) MemoryArtifacts {
	t.Helper()
	return MemoryArtifacts{
		"AuthorizationManager": mustArtifact(t, "AuthorizationManager", noArgsABI, stopContractCode),
		"SecureVault":          mustArtifact(t, "SecureVault", authArgABI, stopContractCode),
		"Reverter":             mustArtifact(t, "Reverter", noArgsABI, revertingCode),
	}
}

func newSimulatedClient(t *testing.T, cfg EVMConfig) *EVMClient {
	t.Helper()
	if cfg.FinalizeTimeout == 0 {
		cfg.FinalizeTimeout = 10 * time.Second
	}
	c, err := NewSimulated(context.Background(), testArtifacts(t), cfg, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}
