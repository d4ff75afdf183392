// Package chain provides chain clients that submit contract instantiations
// and wait for them to finalize.
package chain

import (
	"context"

	"github.com/artpar/deployer/internal/core/domain"
)

// =============================================================================
// Client Interface
// =============================================================================

// Client abstracts submission and confirmation of on-chain instantiations.
//
// Instantiate must not block on inclusion: it returns as soon as the
// instantiation has been handed to the network. AwaitFinalized blocks until
// the instantiation is final, fails, or ctx is done. A cancelled wait leaves
// the submitted transaction to the network.
type Client interface {
	// Instantiate submits a new instance of template with constructor args.
	Instantiate(ctx context.Context, template string, args []domain.Value) (PendingHandle, error)

	// AwaitFinalized blocks until the pending instantiation is finalized.
	AwaitFinalized(ctx context.Context, handle PendingHandle) (domain.Finalization, error)

	// CurrentIdentity returns the account and network the client acts as.
	CurrentIdentity(ctx context.Context) (domain.Identity, error)
}

// PendingHandle identifies a submitted, not yet finalized instantiation.
type PendingHandle struct {
	Template string
	TxHash   string
	// Predicted is the address the instance will have once finalized, when
	// the chain can tell in advance. May be empty.
	Predicted domain.Address
}
