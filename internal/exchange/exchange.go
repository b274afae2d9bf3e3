// Package exchange implements OfferExchange, the order-book walker that
// crosses a wanted amount of one asset against resting offers in price
// order. Its output must be bit-for-bit reproducible across every node
// applying the same ledger, so every comparison and arithmetic step follows
// the rounding and ordering contract in spec §4.4 exactly.
package exchange

import (
	"github.com/stellar/go/support/errors"
	"github.com/stellar/go/support/log"

	"github.com/stellar/ledgerclose/internal/delta"
	"github.com/stellar/ledgerclose/internal/ledger"
	"github.com/stellar/ledgerclose/internal/store"
	"github.com/stellar/ledgerclose/internal/xdrcodec"
)

// FilterDecision is returned by a caller-supplied Filter to stop the walk
// early without crossing the offer that triggered it.
type FilterDecision int

const (
	FilterKeep FilterDecision = iota
	FilterStop
)

// Filter inspects an offer before it is crossed.
type Filter func(offer ledger.OfferEntry) FilterDecision

// Result is the outcome of a ConvertWithOffers call.
type Result int

const (
	// ResultOK means the full wanted amount was obtained.
	ResultOK Result = iota
	// ResultPartial means the book ran dry (or a clamp reduced a cross to
	// zero) before the wanted amount was reached.
	ResultPartial
	// ResultFilterStop means filter requested an early stop.
	ResultFilterStop
)

// TradeTrail records one cross, before/after offer state included so a
// caller (PathPaymentOp) can build the XDR offer trail.
type TradeTrail struct {
	OfferID      uint64
	SellerID     ledger.AccountID
	AmountSold   int64 // of the offer's Selling asset (B)
	AmountBought int64 // of the offer's Buying asset (A)
	FullyConsumed bool
}

// batchSize bounds how many offers are fetched in one BestOffers call; a
// cross mutates or deletes the top offer, so a size of one keeps subsequent
// reads live, but fetching a small page amortizes round trips for empty
// pair lookups (spec's "next best offer" is satisfied either way — a page
// with a stale entry 2..N is simply ignored once entry 1 is handled since
// the loop re-queries after every cross).
const batchSize = 1

// Exchange walks the order book for one `(selling, buying)` conversion
// inside the scope of one LedgerDelta.
type Exchange struct {
	tx     *store.Tx
	delta  *delta.Delta
	logger *log.Entry
	trail  []TradeTrail
}

// New constructs an Exchange bound to tx/d, the currently open root
// transaction and the delta the calling operation is staging into.
func New(tx *store.Tx, d *delta.Delta, logger *log.Entry) *Exchange {
	return &Exchange{tx: tx, delta: d, logger: logger}
}

// OfferTrail returns the trades crossed by every ConvertWithOffers call
// made on e so far, oldest first; the trail is never reset.
func (e *Exchange) OfferTrail() []TradeTrail {
	return e.trail
}

// ConvertWithOffers crosses resting offers selling `buying` for `selling`
// (i.e. `offer.Selling == buying`, `offer.Buying == selling`) until either
// wantB units of `buying` have been obtained, maxSendA units of `selling`
// have been spent, the book runs dry, or filter stops the walk. It
// implements the algorithm of spec §4.4 verbatim.
func (e *Exchange) ConvertWithOffers(
	selling ledger.Asset, maxSendA int64,
	buying ledger.Asset, wantB int64,
	filter Filter,
) (sentA, receivedB int64, result Result, err error) {
	remainingB := wantB

	for remainingB > 0 {
		offers, err := e.tx.Offers.BestOffers(buying, selling, batchSize, 0)
		if err != nil {
			return sentA, receivedB, ResultPartial, err
		}
		if len(offers) == 0 {
			return sentA, receivedB, ResultPartial, nil
		}
		offer := offers[0]
		o := offer.Offer()

		takeB := min64(o.Amount, remainingB)
		payA, err := xdrcodec.BigDivide(takeB, int64(o.Price.N), int64(o.Price.D), xdrcodec.RoundUp)
		if err != nil {
			return sentA, receivedB, ResultPartial, errors.Wrap(err, "offer price overflow")
		}

		if payA > maxSendA-sentA {
			payA = maxSendA - sentA
			takeB, err = xdrcodec.BigDivide(payA, int64(o.Price.D), int64(o.Price.N), xdrcodec.RoundDown)
			if err != nil {
				return sentA, receivedB, ResultPartial, errors.Wrap(err, "offer price overflow")
			}
		}

		if takeB == 0 {
			return sentA, receivedB, ResultPartial, nil
		}

		if filter != nil {
			if filter(*o) == FilterStop {
				return sentA, receivedB, ResultFilterStop, nil
			}
		}

		crossed, fullyConsumed, err := e.crossOffer(offer, payA, takeB)
		if err != nil {
			return sentA, receivedB, ResultPartial, err
		}
		if !crossed {
			// Seller could no longer honor this offer; it has been pulled
			// from the book. Retry without consuming any of the want.
			continue
		}

		e.trail = append(e.trail, TradeTrail{
			OfferID:       o.OfferID,
			SellerID:      o.SellerID,
			AmountSold:    takeB,
			AmountBought:  payA,
			FullyConsumed: fullyConsumed,
		})

		sentA += payA
		receivedB += takeB
		remainingB -= takeB

		if receivedB == wantB {
			return sentA, receivedB, ResultOK, nil
		}
	}
	return sentA, receivedB, ResultPartial, nil
}

// crossOffer applies one trade against offer: the seller's Selling balance
// decreases by takeB, their Buying balance increases by payA. If either leg
// cannot be honored (missing/unauthorized trustline, limit exceeded) the
// offer is deleted and the caller retries against the next-best offer,
// mirroring "its owner can no longer honor it" in spec §4.4.
func (e *Exchange) crossOffer(offer *ledger.OfferFrame, payA, takeB int64) (crossed, fullyConsumed bool, err error) {
	o := offer.Offer()

	if ok, err := e.adjustBalance(o.SellerID, o.Selling, -takeB); err != nil {
		return false, false, err
	} else if !ok {
		return false, false, e.pullOffer(offer)
	}

	if ok, err := e.adjustBalance(o.SellerID, o.Buying, payA); err != nil {
		return false, false, err
	} else if !ok {
		// Undo the debit we already applied before pulling the offer.
		if _, err := e.adjustBalance(o.SellerID, o.Selling, takeB); err != nil {
			return false, false, err
		}
		return false, false, e.pullOffer(offer)
	}

	o.Amount -= takeB
	if o.Amount == 0 {
		if err := e.tx.Offers.StoreDelete(e.delta, offer.Key()); err != nil {
			return false, false, err
		}
		return true, true, nil
	}
	if err := e.tx.Offers.StoreChange(e.delta, offer); err != nil {
		return false, false, err
	}
	return true, false, nil
}

// pullOffer deletes an offer its owner can no longer honor.
func (e *Exchange) pullOffer(offer *ledger.OfferFrame) error {
	if e.logger != nil {
		e.logger.WithField("offer", offer.Offer().OfferID).Info("pulling offer its owner can no longer honor")
	}
	return e.tx.Offers.StoreDelete(e.delta, offer.Key())
}

// adjustBalance applies delta to account's holdings of asset, whether that
// means the account's native balance or one of its trustlines. It returns
// false (no mutation applied) if the adjustment would violate invariants
// 1/2, or if authorization is missing on a credit line.
func (e *Exchange) adjustBalance(account ledger.AccountID, asset ledger.Asset, amount int64) (bool, error) {
	if asset.Type == ledger.AssetTypeNative {
		frame, ok, err := e.tx.Accounts.Load(ledger.AccountKey(account))
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		a := frame.Account()
		newBalance := a.Balance + amount
		if newBalance < 0 || newBalance > ledger.MaxBalance {
			return false, nil
		}
		a.Balance = newBalance
		if err := e.tx.Accounts.StoreChange(e.delta, frame); err != nil {
			return false, err
		}
		return true, nil
	}

	frame, ok, err := e.tx.TrustLines.Load(ledger.TrustLineKey(account, asset))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	t := frame.TrustLine()
	if !t.IsAuthorized() {
		return false, nil
	}
	if !t.AddBalance(amount) {
		return false, nil
	}
	if err := e.tx.TrustLines.StoreChange(e.delta, frame); err != nil {
		return false, err
	}
	return true, nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
