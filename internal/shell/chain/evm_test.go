package chain

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/deployer/internal/core/domain"
)

func TestSimulated_CurrentIdentity(t *testing.T) {
	c := newSimulatedClient(t, EVMConfig{})

	id, err := c.CurrentIdentity(context.Background())
	require.NoError(t, err)
	assert.True(t, common.IsHexAddress(id.Account.String()))
	assert.NotEmpty(t, id.NetworkID)
}

func TestSimulated_DeployChain(t *testing.T) {
	ctx := context.Background()
	c := newSimulatedClient(t, EVMConfig{})

	handle, err := c.Instantiate(ctx, "AuthorizationManager", nil)
	require.NoError(t, err)
	assert.Equal(t, "AuthorizationManager", handle.Template)
	assert.NotEmpty(t, handle.TxHash)
	assert.NotEmpty(t, handle.Predicted)

	auth, err := c.AwaitFinalized(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, handle.Predicted, auth.Address)
	assert.Equal(t, handle.TxHash, auth.TxHash)
	assert.GreaterOrEqual(t, auth.Confirmations, uint64(1))
	assert.NotZero(t, auth.GasUsed)

	vaultHandle, err := c.Instantiate(ctx, "SecureVault", []domain.Value{
		{Type: domain.AddressType, Value: auth.Address},
	})
	require.NoError(t, err)

	vault, err := c.AwaitFinalized(ctx, vaultHandle)
	require.NoError(t, err)
	assert.NotEqual(t, auth.Address, vault.Address)
	assert.Greater(t, vault.BlockNumber, auth.BlockNumber)
}

func TestSimulated_WaitsForConfirmations(t *testing.T) {
	ctx := context.Background()
	c := newSimulatedClient(t, EVMConfig{Confirmations: 3})

	handle, err := c.Instantiate(ctx, "AuthorizationManager", nil)
	require.NoError(t, err)

	fin, err := c.AwaitFinalized(ctx, handle)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, fin.Confirmations, uint64(3))
}

func TestSimulated_InstantiateErrors(t *testing.T) {
	ctx := context.Background()
	c := newSimulatedClient(t, EVMConfig{})

	tests := []struct {
		name     string
		template string
		args     []domain.Value
		wantErr  error
	}{
		{
			name:     "unknown template",
			template: "Missing",
			wantErr:  ErrArtifactNotFound,
		},
		{
			name:     "missing constructor argument",
			template: "SecureVault",
			wantErr:  ErrArgumentMismatch,
		},
		{
			name:     "declared type differs from constructor",
			template: "SecureVault",
			args:     []domain.Value{{Type: "uint256", Value: 1}},
			wantErr:  ErrArgumentMismatch,
		},
		{
			name:     "gas estimation fails on revert",
			template: "Reverter",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Instantiate(ctx, tt.template, tt.args)
			require.Error(t, err)

			var chainErr *ChainError
			require.ErrorAs(t, err, &chainErr)
			assert.Equal(t, "Instantiate", chainErr.Op)
			assert.Equal(t, tt.template, chainErr.Template)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestSimulated_RevertedDeploymentFailsFinalization(t *testing.T) {
	ctx := context.Background()
	c := newSimulatedClient(t, EVMConfig{GasLimit: 100_000})

	handle, err := c.Instantiate(ctx, "Reverter", nil)
	require.NoError(t, err)

	_, err = c.AwaitFinalized(ctx, handle)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReverted)
}

func TestAwaitFinalized_UnknownTransactionTimesOut(t *testing.T) {
	c := newSimulatedClient(t, EVMConfig{
		FinalizeTimeout: 50 * time.Millisecond,
		PollInterval:    5 * time.Millisecond,
	})

	_, err := c.AwaitFinalized(context.Background(), PendingHandle{
		Template: "AuthorizationManager",
		TxHash:   common.HexToHash("0x01").Hex(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestAwaitFinalized_ContextCancelled(t *testing.T) {
	c := newSimulatedClient(t, EVMConfig{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.AwaitFinalized(ctx, PendingHandle{
		Template: "AuthorizationManager",
		TxHash:   common.HexToHash("0x01").Hex(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestAwaitFinalized_EmptyHandle(t *testing.T) {
	c := newSimulatedClient(t, EVMConfig{})

	_, err := c.AwaitFinalized(context.Background(), PendingHandle{Template: "X"})
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestParsePrivateKey(t *testing.T) {
	key, err := ParsePrivateKey("0xb71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291")
	require.NoError(t, err)
	assert.NotNil(t, key)

	_, err = ParsePrivateKey("")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParsePrivateKey("not-hex")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestDial_InvalidKeyFailsBeforeConnecting(t *testing.T) {
	_, err := Dial(context.Background(), EVMConfig{RPCURL: "http://127.0.0.1:1"}, MemoryArtifacts{}, discardLogger())
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestChainError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *ChainError
		want string
	}{
		{"op only", NewChainError("Dial", "", "", "refused", nil), "Dial: refused"},
		{"with template", NewChainError("Instantiate", "Vault", "", "encode", nil), "Instantiate Vault: encode"},
		{"with tx", NewChainError("AwaitFinalized", "Vault", "0xab", "reverted", nil), "AwaitFinalized Vault (tx 0xab): reverted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
