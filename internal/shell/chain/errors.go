package chain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Artifact errors
	ErrArtifactNotFound = errors.New("contract artifact not found")
	ErrInvalidArtifact  = errors.New("invalid contract artifact")

	// Argument errors
	ErrArgumentMismatch = errors.New("constructor arguments do not match ABI")

	// Network errors
	ErrConnectionFailed = errors.New("chain connection failed")
	ErrInvalidKey       = errors.New("invalid deployer key")
	ErrChainIDMismatch  = errors.New("chain ID mismatch")

	// Transaction errors
	ErrSubmitRejected = errors.New("transaction rejected")
	ErrReverted       = errors.New("deployment transaction reverted")
	ErrNoCode         = errors.New("no contract code at deployed address")
	ErrTimeout        = errors.New("timed out waiting for finalization")
	ErrUnknownHandle  = errors.New("unknown pending handle")
)

// ChainError wraps errors with additional context.
type ChainError struct {
	Op       string // Operation that failed (e.g., "Instantiate")
	Template string // Contract template if applicable
	TxHash   string // Transaction hash if applicable
	Message  string
	Err      error
}

func (e *ChainError) Error() string {
	switch {
	case e.TxHash != "":
		return fmt.Sprintf("%s %s (tx %s): %s", e.Op, e.Template, e.TxHash, e.Message)
	case e.Template != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.Template, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// NewChainError creates a new ChainError.
func NewChainError(op, template, txHash, message string, err error) *ChainError {
	return &ChainError{
		Op:       op,
		Template: template,
		TxHash:   txHash,
		Message:  message,
		Err:      err,
	}
}
