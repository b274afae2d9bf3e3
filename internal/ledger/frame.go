package ledger

// EntryFrame wraps a persistent ledger entry and mediates its mutation,
// serialization, and identity. The variant set is closed (Account,
// TrustLine, Offer) and known at compile time — no open inheritance, per
// design note §9.
type EntryFrame interface {
	// Key returns the entry's canonical identifier.
	Key() LedgerKey
	// Entry returns the wrapped entry body.
	Entry() LedgerEntry
	// Copy returns an independent frame holding a copy of the same body,
	// so a caller can mutate one without affecting the other. Each frame
	// exclusively owns its in-memory body.
	Copy() EntryFrame
}

// AccountFrame wraps an AccountEntry.
type AccountFrame struct {
	entry AccountEntry
}

// NewAccountFrame constructs a frame around e.
func NewAccountFrame(e AccountEntry) *AccountFrame { return &AccountFrame{entry: e} }

// Account exposes the wrapped entry for read/write access by operation
// appliers.
func (f *AccountFrame) Account() *AccountEntry { return &f.entry }

func (f *AccountFrame) Key() LedgerKey { return f.entry.key() }
func (f *AccountFrame) Entry() LedgerEntry {
	e := f.entry
	return LedgerEntry{Type: EntryTypeAccount, Account: &e}
}
func (f *AccountFrame) Copy() EntryFrame {
	return &AccountFrame{entry: f.entry}
}

// TrustLineFrame wraps a TrustLineEntry.
type TrustLineFrame struct {
	entry TrustLineEntry
}

// NewTrustLineFrame constructs a frame around e.
func NewTrustLineFrame(e TrustLineEntry) *TrustLineFrame { return &TrustLineFrame{entry: e} }

// TrustLine exposes the wrapped entry for read/write access.
func (f *TrustLineFrame) TrustLine() *TrustLineEntry { return &f.entry }

func (f *TrustLineFrame) Key() LedgerKey { return f.entry.key() }
func (f *TrustLineFrame) Entry() LedgerEntry {
	e := f.entry
	return LedgerEntry{Type: EntryTypeTrustLine, TrustLine: &e}
}
func (f *TrustLineFrame) Copy() EntryFrame {
	return &TrustLineFrame{entry: f.entry}
}

// OfferFrame wraps an OfferEntry.
type OfferFrame struct {
	entry OfferEntry
}

// NewOfferFrame constructs a frame around e.
func NewOfferFrame(e OfferEntry) *OfferFrame { return &OfferFrame{entry: e} }

// Offer exposes the wrapped entry for read/write access.
func (f *OfferFrame) Offer() *OfferEntry { return &f.entry }

func (f *OfferFrame) Key() LedgerKey { return f.entry.key() }
func (f *OfferFrame) Entry() LedgerEntry {
	e := f.entry
	return LedgerEntry{Type: EntryTypeOffer, Offer: &e}
}
func (f *OfferFrame) Copy() EntryFrame {
	return &OfferFrame{entry: f.entry}
}

// FrameFromEntry constructs the concrete EntryFrame variant matching e.Type,
// the Go analogue of EntryFrame::FromXDR.
func FrameFromEntry(e LedgerEntry) EntryFrame {
	switch e.Type {
	case EntryTypeAccount:
		return NewAccountFrame(*e.Account)
	case EntryTypeTrustLine:
		return NewTrustLineFrame(*e.TrustLine)
	case EntryTypeOffer:
		return NewOfferFrame(*e.Offer)
	default:
		panic("ledger: unknown entry type")
	}
}
