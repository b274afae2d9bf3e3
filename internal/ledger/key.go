package ledger

import (
	"encoding/hex"

	"github.com/stellar/ledgerclose/internal/xdrcodec"
)

// Hash is the 32-byte digest type used throughout the ledger close
// pipeline (content hashes, previous-ledger hash, transaction hashes).
type Hash = xdrcodec.Hash

// EntryType tags the three ledger-entry variants this core knows about.
type EntryType int32

const (
	EntryTypeAccount EntryType = iota
	EntryTypeTrustLine
	EntryTypeOffer
)

// LedgerKey is a tagged union identifying one ledger entry. It is a pure
// function of the entry's body (invariant 6): two entries with the same
// identity fields produce the same key.
type LedgerKey struct {
	Type EntryType

	// Account
	AccountID AccountID

	// TrustLine
	TrustAccountID AccountID
	TrustAsset     Asset

	// Offer
	SellerID AccountID
	OfferID  uint64
}

// AccountKey builds an Account LedgerKey.
func AccountKey(id AccountID) LedgerKey {
	return LedgerKey{Type: EntryTypeAccount, AccountID: id}
}

// TrustLineKey builds a TrustLine LedgerKey.
func TrustLineKey(account AccountID, asset Asset) LedgerKey {
	return LedgerKey{Type: EntryTypeTrustLine, TrustAccountID: account, TrustAsset: asset}
}

// OfferKey builds an Offer LedgerKey.
func OfferKey(seller AccountID, offerID uint64) LedgerKey {
	return LedgerKey{Type: EntryTypeOffer, SellerID: seller, OfferID: offerID}
}

// MarshalCanonical returns the canonical binary encoding of the key, used as
// the basis of the cache key (CacheKey).
func (k LedgerKey) MarshalCanonical() []byte {
	e := &xdrcodec.Encoder{}
	e.Int32(int32(k.Type))
	switch k.Type {
	case EntryTypeAccount:
		k.AccountID.marshal(e)
	case EntryTypeTrustLine:
		k.TrustAccountID.marshal(e)
		k.TrustAsset.marshal(e)
	case EntryTypeOffer:
		k.SellerID.marshal(e)
		e.Uint64(k.OfferID)
	}
	return e.Bytes()
}

// CacheKey is the hex-encoded canonical binary encoding of the key — the
// read-through cache's lookup key (§4.1).
func (k LedgerKey) CacheKey() string {
	return hex.EncodeToString(k.MarshalCanonical())
}
