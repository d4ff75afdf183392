package report

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/artpar/deployer/internal/core/domain"
)

// =============================================================================
// Address Book
// =============================================================================

// AddressBookFile is the JSON document written after a successful run.
type AddressBookFile struct {
	RunID      string            `json:"run_id"`
	ChainID    string            `json:"chain_id"`
	Deployer   string            `json:"deployer"`
	DeployedAt time.Time         `json:"deployed_at"`
	Order      []string          `json:"order"`
	Contracts  map[string]string `json:"contracts"`
}

// AddressBook writes the deployed addresses to a JSON file. Failed runs leave
// an existing file untouched.
type AddressBook struct {
	path string
}

// NewAddressBook creates a reporter writing to path.
func NewAddressBook(path string) *AddressBook {
	return &AddressBook{path: path}
}

func (a *AddressBook) ReportSuccess(ctx context.Context, run *domain.Run, result *domain.Result) error {
	book := AddressBookFile{
		RunID:     run.ID,
		ChainID:   run.Identity.NetworkID,
		Deployer:  run.Identity.Account.String(),
		Order:     make([]string, 0, result.Len()),
		Contracts: make(map[string]string, result.Len()),
	}
	if run.FinishedAt != nil {
		book.DeployedAt = *run.FinishedAt
	}
	for _, rec := range result.Records() {
		book.Order = append(book.Order, rec.Step)
		book.Contracts[rec.Step] = rec.Address().String()
	}

	data, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return fmt.Errorf("encode address book: %w", err)
	}
	return writeFileAtomic(a.path, append(data, '\n'))
}

func (a *AddressBook) ReportFailure(ctx context.Context, run *domain.Run, finalized []domain.Record, cause error) error {
	return nil
}

// ReadAddressBook loads an address book written by AddressBook.
func ReadAddressBook(path string) (*AddressBookFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read address book: %w", err)
	}
	var book AddressBookFile
	if err := json.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("decode address book %s: %w", path, err)
	}
	return &book, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create address book directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".addressbook-*.json")
	if err != nil {
		return fmt.Errorf("write address book: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write address book: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write address book: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write address book: %w", err)
	}
	return nil
}
