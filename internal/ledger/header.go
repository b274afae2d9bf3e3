package ledger

import (
	"crypto/sha256"

	"github.com/stellar/ledgerclose/internal/xdrcodec"
)

// Header is LedgerHeader: the per-close metadata chained by hash from one
// ledger to the next. It sits alongside the EntryFrame types rather than
// under internal/closemgr because storage (internal/store) needs a type to
// persist that has no dependency on the coordinator that produces it.
type Header struct {
	LedgerSeq    uint32
	PreviousHash Hash
	TxSetHash    Hash
	CloseTime    int64
	BaseFee      uint32
	MaxTxSetSize uint32
	BaseReserve  int64
}

// Hash computes the header's own content hash: SHA-256 over the previous
// header's hash, the applied transaction set's content hash, the close
// time, and the ledger's post-upgrade fee parameters — §4.8 step 5's
// "(previous hash, tx-set hash, close-time, upgrade hashes)", with the
// post-upgrade base fee/max tx set size/reserve standing in for "upgrade
// hashes" since this core has no separate upgrade-hash wire type.
func (h Header) Hash() Hash {
	e := &xdrcodec.Encoder{}
	e.Uint32(h.LedgerSeq)
	e.Fixed(h.PreviousHash[:])
	e.Fixed(h.TxSetHash[:])
	e.Int64(h.CloseTime)
	e.Uint32(h.BaseFee)
	e.Uint32(h.MaxTxSetSize)
	e.Int64(h.BaseReserve)
	return sha256.Sum256(e.Bytes())
}
