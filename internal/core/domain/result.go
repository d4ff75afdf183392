package domain

import (
	"fmt"
	"time"
)

// =============================================================================
// Finalization
// =============================================================================

// Finalization is what the chain reports once an instantiation is
// irreversibly recorded.
type Finalization struct {
	Address       Address `json:"address"`
	TxHash        string  `json:"tx_hash,omitempty"`
	BlockNumber   uint64  `json:"block_number,omitempty"`
	Confirmations uint64  `json:"confirmations,omitempty"`
	GasUsed       uint64  `json:"gas_used,omitempty"`
}

// Identity is the caller account and network a chain client acts as.
type Identity struct {
	Account   Address `json:"account"`
	NetworkID string  `json:"network_id"`
}

// =============================================================================
// Deployment Result
// =============================================================================

// Record is the finalized outcome of a single step.
type Record struct {
	Step         string       `json:"step"`
	Template     string       `json:"template"`
	Finalization Finalization `json:"finalization"`
	FinalizedAt  time.Time    `json:"finalized_at"`
}

// Address returns the finalized address of the step.
func (r Record) Address() Address {
	return r.Finalization.Address
}

// Result maps step identities to finalized records. Each step is recorded at
// most once and records are never modified afterwards.
type Result struct {
	order   []string
	records map[string]Record
}

// NewResult creates an empty result.
func NewResult() *Result {
	return &Result{records: make(map[string]Record)}
}

// Record stores the record for a step. Recording a step twice is an
// invariant violation.
func (r *Result) Record(rec Record) error {
	if rec.Step == "" {
		return fmt.Errorf("%w: record without step", ErrInvariantViolation)
	}
	if rec.Finalization.Address.IsZero() {
		return fmt.Errorf("%w: step %s finalized without address", ErrInvariantViolation, rec.Step)
	}
	if _, exists := r.records[rec.Step]; exists {
		return fmt.Errorf("%w: step %s already recorded", ErrInvariantViolation, rec.Step)
	}
	r.records[rec.Step] = rec
	r.order = append(r.order, rec.Step)
	return nil
}

// Address returns the finalized address of a step.
func (r *Result) Address(step string) (Address, bool) {
	if r == nil {
		return "", false
	}
	rec, ok := r.records[step]
	if !ok {
		return "", false
	}
	return rec.Address(), true
}

// Get returns the record of a step.
func (r *Result) Get(step string) (Record, bool) {
	if r == nil {
		return Record{}, false
	}
	rec, ok := r.records[step]
	return rec, ok
}

// Records returns all records in the order they were recorded.
func (r *Result) Records() []Record {
	if r == nil {
		return nil
	}
	out := make([]Record, 0, len(r.order))
	for _, step := range r.order {
		out = append(out, r.records[step])
	}
	return out
}

// Addresses returns a step -> address map.
func (r *Result) Addresses() map[string]Address {
	out := make(map[string]Address)
	if r == nil {
		return out
	}
	for step, rec := range r.records {
		out[step] = rec.Address()
	}
	return out
}

// Len returns the number of recorded steps.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}
