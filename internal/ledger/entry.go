package ledger

import (
	"math"

	"github.com/stellar/go/support/errors"

	"github.com/stellar/ledgerclose/internal/xdrcodec"
)

// Account flag bits (AccountEntry.Flags).
const (
	AuthRequiredFlag  uint32 = 1 << 0
	AuthRevocableFlag uint32 = 1 << 1
)

// TrustLine flag bits (TrustLineEntry.Flags). Bit 0 is the sole flag the
// core cares about: whether the issuer has authorized the line.
const (
	TrustLineAuthorizedFlag uint32 = 1 << 0
)

// OfferPriceDivisor is 2^32, the fixed-point scale OfferEntry.ComputedPrice
// is derived against (spec invariant 3: price = bigDivide(n, 2^32, d)).
const OfferPriceDivisor int64 = 1 << 32

// Signer is one entry in an account's multisig signer list.
type Signer struct {
	Key    AccountID
	Weight uint32
}

// Thresholds holds an account's four signing-weight thresholds (master,
// low, medium, high), stored the way stellar-core packs them into a single
// four-byte string.
type Thresholds [4]byte

// AccountEntry is the persistent state of one account.
type AccountEntry struct {
	AccountID  AccountID
	Balance    int64
	SeqNum     int64
	Flags      uint32
	Thresholds Thresholds
	Signers    []Signer
}

// Validate enforces invariant 1 (non-negative balance, ≤ INT64_MAX is
// automatic for an int64) on an account entry.
func (a AccountEntry) Validate() error {
	if a.Balance < 0 {
		return errors.New("account balance must be non-negative")
	}
	return nil
}

func (a AccountEntry) key() LedgerKey {
	return AccountKey(a.AccountID)
}

func (a AccountEntry) marshal(e *xdrcodec.Encoder) {
	a.AccountID.marshal(e)
	e.Int64(a.Balance)
	e.Int64(a.SeqNum)
	e.Uint32(a.Flags)
	e.Fixed(a.Thresholds[:])
	e.Uint32(uint32(len(a.Signers)))
	for _, s := range a.Signers {
		s.Key.marshal(e)
		e.Uint32(s.Weight)
	}
}

// TrustLineEntry is an account's consent to hold a non-native asset issued
// by a specific issuer.
type TrustLineEntry struct {
	AccountID AccountID
	Asset     Asset
	Balance   int64
	Limit     int64
	Flags     uint32
}

// IsAuthorized reports whether the issuer has authorized this line.
func (t TrustLineEntry) IsAuthorized() bool {
	return t.Flags&TrustLineAuthorizedFlag != 0
}

// Validate enforces invariants 1, 2, and 5: non-negative balance bounded by
// limit, and no trustline for the native asset.
func (t TrustLineEntry) Validate() error {
	if t.Asset.Type == AssetTypeNative {
		return errors.New("trustlines may not hold the native asset")
	}
	if t.Balance < 0 {
		return errors.New("trustline balance must be non-negative")
	}
	if t.Balance > t.Limit {
		return errors.New("trustline balance exceeds limit")
	}
	return nil
}

// AddBalance applies delta to the trustline balance, reporting false
// (leaving the line unmodified) if the result would violate invariants 1/2
// — mirrors TrustFrame::addBalance.
func (t *TrustLineEntry) AddBalance(delta int64) bool {
	newBalance := t.Balance + delta
	if newBalance < 0 || newBalance > t.Limit {
		return false
	}
	t.Balance = newBalance
	return true
}

func (t TrustLineEntry) key() LedgerKey {
	return TrustLineKey(t.AccountID, t.Asset)
}

func (t TrustLineEntry) marshal(e *xdrcodec.Encoder) {
	t.AccountID.marshal(e)
	t.Asset.marshal(e)
	e.Int64(t.Balance)
	e.Int64(t.Limit)
	e.Uint32(t.Flags)
}

// OfferEntry is a resting order selling one asset for another.
type OfferEntry struct {
	SellerID AccountID
	OfferID  uint64
	Selling  Asset
	Buying   Asset
	Amount   int64
	Price    Price
	Flags    uint32
}

// ComputedPrice returns bigDivide(price.N, 2^32, price.D), the fixed-point
// price stellar-core stores in the offers.price column so that ORDER BY
// price needs no runtime division (§4.2).
func (o OfferEntry) ComputedPrice() (int64, error) {
	return xdrcodec.BigDivide(int64(o.Price.N), OfferPriceDivisor, int64(o.Price.D), xdrcodec.RoundDown)
}

// Validate enforces invariants 3 and 4.
func (o OfferEntry) Validate() error {
	if o.Amount <= 0 {
		return errors.New("offer amount must be positive")
	}
	if o.Price.N <= 0 || o.Price.D <= 0 {
		return errors.New("offer price numerator and denominator must be positive")
	}
	if o.Selling.Equal(o.Buying) {
		return errors.New("offer selling and buying assets must differ")
	}
	if _, err := o.ComputedPrice(); err != nil {
		return errors.Wrap(err, "offer price does not fit in 64 bits")
	}
	return nil
}

func (o OfferEntry) key() LedgerKey {
	return OfferKey(o.SellerID, o.OfferID)
}

func (o OfferEntry) marshal(e *xdrcodec.Encoder) {
	o.SellerID.marshal(e)
	e.Uint64(o.OfferID)
	o.Selling.marshal(e)
	o.Buying.marshal(e)
	e.Int64(o.Amount)
	o.Price.marshal(e)
	e.Uint32(o.Flags)
}

// LedgerEntry is a tagged union over the three entry variants the core
// persists. Exactly one of Account, TrustLine, Offer is non-nil, selected by
// Type.
type LedgerEntry struct {
	Type      EntryType
	Account   *AccountEntry
	TrustLine *TrustLineEntry
	Offer     *OfferEntry
}

// Key derives the LedgerKey for this entry (invariant 6: a pure function of
// the body).
func (e LedgerEntry) Key() LedgerKey {
	switch e.Type {
	case EntryTypeAccount:
		return e.Account.key()
	case EntryTypeTrustLine:
		return e.TrustLine.key()
	case EntryTypeOffer:
		return e.Offer.key()
	default:
		panic("ledger: unknown entry type")
	}
}

// Validate dispatches to the variant's own invariant checks.
func (e LedgerEntry) Validate() error {
	switch e.Type {
	case EntryTypeAccount:
		return e.Account.Validate()
	case EntryTypeTrustLine:
		return e.TrustLine.Validate()
	case EntryTypeOffer:
		return e.Offer.Validate()
	default:
		return errors.New("unknown entry type")
	}
}

// MarshalCanonical encodes the entry using the same canonical scheme as
// LedgerKey.MarshalCanonical. No other package calls it; the store persists
// entries column by column.
func (e LedgerEntry) MarshalCanonical() []byte {
	enc := &xdrcodec.Encoder{}
	enc.Int32(int32(e.Type))
	switch e.Type {
	case EntryTypeAccount:
		e.Account.marshal(enc)
	case EntryTypeTrustLine:
		e.TrustLine.marshal(enc)
	case EntryTypeOffer:
		e.Offer.marshal(enc)
	}
	return enc.Bytes()
}

// Equal reports whether two entries carry identical data, used by the
// consistency checker (Tx.CheckAgainstDatabase).
func (e LedgerEntry) Equal(o LedgerEntry) bool {
	if e.Type != o.Type {
		return false
	}
	switch e.Type {
	case EntryTypeAccount:
		return accountsEqual(*e.Account, *o.Account)
	case EntryTypeTrustLine:
		return *e.TrustLine == *o.TrustLine
	case EntryTypeOffer:
		return *e.Offer == *o.Offer
	default:
		return false
	}
}

func accountsEqual(a, b AccountEntry) bool {
	if a.AccountID != b.AccountID || a.Balance != b.Balance || a.SeqNum != b.SeqNum ||
		a.Flags != b.Flags || a.Thresholds != b.Thresholds || len(a.Signers) != len(b.Signers) {
		return false
	}
	for i := range a.Signers {
		if a.Signers[i] != b.Signers[i] {
			return false
		}
	}
	return true
}

// MaxBalance is the largest representable balance (INT64_MAX), spelled out
// here because invariant 1 references it directly.
const MaxBalance = int64(math.MaxInt64)
