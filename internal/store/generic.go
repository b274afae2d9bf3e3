package store

import (
	"github.com/stellar/go/support/errors"

	"github.com/stellar/ledgerclose/internal/delta"
	"github.com/stellar/ledgerclose/internal/ledger"
)

// Load dispatches to the repo matching key.Type, the Go analogue of
// EntryFrame::storeLoad's switch over LedgerKey variants.
func (t *Tx) Load(key ledger.LedgerKey) (ledger.EntryFrame, bool, error) {
	switch key.Type {
	case ledger.EntryTypeAccount:
		f, ok, err := t.Accounts.Load(key)
		if err != nil || !ok {
			return nil, false, err
		}
		return f, true, nil
	case ledger.EntryTypeTrustLine:
		f, ok, err := t.TrustLines.Load(key)
		if err != nil || !ok {
			return nil, false, err
		}
		return f, true, nil
	case ledger.EntryTypeOffer:
		f, ok, err := t.Offers.Load(key)
		if err != nil || !ok {
			return nil, false, err
		}
		return f, true, nil
	default:
		return nil, false, errors.New("store: unknown ledger key type")
	}
}

// Exists dispatches to the repo matching key.Type. It never consults the
// cache: the store is the sole source of truth for existence (§4.1).
func (t *Tx) Exists(key ledger.LedgerKey) (bool, error) {
	switch key.Type {
	case ledger.EntryTypeAccount:
		return t.Accounts.Exists(key.AccountID)
	case ledger.EntryTypeTrustLine:
		return t.TrustLines.Exists(key.TrustAccountID, key.TrustAsset)
	case ledger.EntryTypeOffer:
		return t.Offers.Exists(key.SellerID, key.OfferID)
	default:
		return false, errors.New("store: unknown ledger key type")
	}
}

// StoreDelete dispatches to the repo matching key.Type.
func (t *Tx) StoreDelete(d *delta.Delta, key ledger.LedgerKey) error {
	switch key.Type {
	case ledger.EntryTypeAccount:
		return t.Accounts.StoreDelete(d, key)
	case ledger.EntryTypeTrustLine:
		return t.TrustLines.StoreDelete(d, key)
	case ledger.EntryTypeOffer:
		return t.Offers.StoreDelete(d, key)
	default:
		return errors.New("store: unknown ledger key type")
	}
}

// CheckAgainstDatabase flushes the cache entry for live's key, re-reads from
// storage, and asserts equality — the debug consistency check described in
// §4.1. It is deliberately not on any hot path; callers gate it behind a
// debug flag.
func (t *Tx) CheckAgainstDatabase(cache *ledger.Cache, live ledger.LedgerEntry) error {
	key := live.Key()
	cache.Flush(key)
	frame, ok, err := t.Load(key)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(ErrStorageInvariantViolation, "entry missing from database")
	}
	if !frame.Entry().Equal(live) {
		return errors.Wrap(ErrStorageInvariantViolation, "inconsistent state between cache and database")
	}
	return nil
}
