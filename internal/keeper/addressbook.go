package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fetchai/wallet-browser-extension-sub000/pkg/types"
)

// addressBookStorageKey is the fixed key the address book is persisted under.
const addressBookStorageKey = "keyring/address-book"

// addressBook tracks every known address, its derivation path or remote
// link, and which single address is active. Keeper methods are the only
// writers.
type addressBook struct {
	Active  string               `json:"active"`
	Entries []types.AddressEntry `json:"entries"`
}

func (b *addressBook) find(address string) *types.AddressEntry {
	for i := range b.Entries {
		if strings.EqualFold(b.Entries[i].Address, address) {
			return &b.Entries[i]
		}
	}
	return nil
}

// upsert adds or replaces the entry for entry.Address. The first entry
// ever added becomes active, preserving the exactly-one-active invariant.
func (b *addressBook) upsert(entry types.AddressEntry) {
	if existing := b.find(entry.Address); existing != nil {
		*existing = entry
	} else {
		b.Entries = append(b.Entries, entry)
	}
	if b.Active == "" {
		b.Active = entry.Address
	}
}

func (k *Keeper) loadAddressBook(ctx context.Context) error {
	raw, found, err := k.kv.Get(ctx, addressBookStorageKey)
	if err != nil {
		return fmt.Errorf("failed to load address book: %w", err)
	}

	book := &addressBook{}
	if found && len(raw) > 0 {
		if err := json.Unmarshal(raw, book); err != nil {
			return fmt.Errorf("failed to decode address book: %w", err)
		}
	}

	k.mu.Lock()
	k.book = book
	k.mu.Unlock()
	return nil
}

// saveAddressBook persists the book. Callers must hold k.mu.
func (k *Keeper) saveAddressBook(ctx context.Context) error {
	raw, err := json.Marshal(k.book)
	if err != nil {
		return fmt.Errorf("failed to encode address book: %w", err)
	}
	if err := k.kv.Set(ctx, addressBookStorageKey, raw); err != nil {
		return fmt.Errorf("failed to persist address book: %w", err)
	}
	return nil
}
