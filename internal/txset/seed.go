package txset

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/stellar/ledgerclose/internal/ledger"
)

// seedStream is a deterministic byte generator keyed on a 32-byte seed: it
// produces an unbounded stream of pseudo-random bytes by hashing the seed
// concatenated with an increasing counter. Every node derives the same
// stream from the same previousLedgerHash, so the shuffle it drives is
// reproducible across the network without any shared global RNG state
// (math/rand's global source is explicitly unsafe here: it is process-wide
// mutable state, not a pure function of the seed).
type seedStream struct {
	seed    ledger.Hash
	counter uint64
	buf     []byte
}

func newSeedStream(seed ledger.Hash) *seedStream {
	return &seedStream{seed: seed}
}

func (s *seedStream) next() byte {
	if len(s.buf) == 0 {
		var block [8]byte
		binary.BigEndian.PutUint64(block[:], s.counter)
		s.counter++
		h := sha256.Sum256(append(append([]byte{}, s.seed[:]...), block[:]...))
		s.buf = h[:]
	}
	b := s.buf[0]
	s.buf = s.buf[1:]
	return b
}

// uint32n returns a value in [0, n) without modulo bias, rejection-sampling
// 4-byte draws from the stream the same way crypto/rand.Int would.
func (s *seedStream) uint32n(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	limit := (^uint32(0) / n) * n
	for {
		v := uint32(s.next())<<24 | uint32(s.next())<<16 | uint32(s.next())<<8 | uint32(s.next())
		if v < limit {
			return v % n
		}
	}
}

// SortForApply returns the transactions in apply order: a Fisher-Yates
// shuffle of the hash-sorted set, seeded from previousLedgerHash. Open
// Question resolved per spec §9: the seed is the previous ledger's hash,
// not this set's own content hash, so the permutation cannot be
// manipulated by a party choosing which transactions to include (the seed
// is fixed before the set is assembled).
func (f *Frame) SortForApply() []Transaction {
	f.SortForHash()
	out := make([]Transaction, len(f.transactions))
	copy(out, f.transactions)

	stream := newSeedStream(f.previousLedgerHash)
	for i := len(out) - 1; i > 0; i-- {
		j := stream.uint32n(uint32(i + 1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}
