package ops

import (
	"github.com/stellar/go/support/log"

	"github.com/stellar/ledgerclose/internal/delta"
	"github.com/stellar/ledgerclose/internal/exchange"
	"github.com/stellar/ledgerclose/internal/ledger"
	"github.com/stellar/ledgerclose/internal/store"
)

// IDGenerator allocates a fresh offer ID for a ManageOfferOp creating a new
// offer (OfferID == 0). This core does not own last-used-ID bookkeeping
// (out of scope per the consensus sequence-allocation Non-goal); a real
// node supplies one backed by its own ledger sequence/operation counter.
type IDGenerator interface {
	NextOfferID() uint64
}

// ManageOfferOp creates, updates, or deletes a resting offer. Restores
// ManageOfferOpFrame, referenced but not retrieved in full — its shape is
// reconstructed from OfferFrame's constructor invariants (SPEC_FULL.md
// §4.6.1).
type ManageOfferOp struct {
	Seller  ledger.AccountID
	OfferID uint64 // 0 creates a new offer; nonzero updates or (Amount==0) deletes
	Selling ledger.Asset
	Buying  ledger.Asset
	Amount  int64
	Price   ledger.Price
}

// ManageOfferResult is the outcome of one ManageOffer call.
type ManageOfferResult struct {
	Code    ManageOfferResultCode
	OfferID uint64
	Trail   []Trade
}

// ManageOffer applies op against tx, journaling every mutation (the offer
// itself, any resting offers it immediately crosses, and the seller's two
// trustlines/account balances) into d.
func ManageOffer(tx *store.Tx, d *delta.Delta, logger *log.Entry, ids IDGenerator, op ManageOfferOp) (ManageOfferResult, error) {
	if op.Selling.Equal(op.Buying) {
		return ManageOfferResult{Code: ManageOfferCrossSelf}, nil
	}
	if !ledger.IsAssetValid(op.Selling) || !ledger.IsAssetValid(op.Buying) {
		return ManageOfferResult{Code: ManageOfferMalformed}, nil
	}

	if op.Amount == 0 {
		return deleteOffer(tx, d, op)
	}

	if op.Price.N <= 0 || op.Price.D <= 0 || op.Amount < 0 {
		return ManageOfferResult{Code: ManageOfferMalformed}, nil
	}

	if code, err := checkOfferIssuers(tx, op); err != nil || code != ManageOfferSuccess {
		return ManageOfferResult{Code: code}, err
	}
	if code, err := checkOfferTrust(tx, op); err != nil || code != ManageOfferSuccess {
		return ManageOfferResult{Code: code}, err
	}

	offerID := op.OfferID
	if offerID == 0 {
		offerID = ids.NextOfferID()
	} else {
		_, ok, err := tx.Offers.Load(ledger.OfferKey(op.Seller, offerID))
		if err != nil {
			return ManageOfferResult{}, err
		}
		if !ok {
			return ManageOfferResult{Code: ManageOfferNotFound}, nil
		}
	}

	entry := ledger.OfferEntry{
		SellerID: op.Seller,
		OfferID:  offerID,
		Selling:  op.Selling,
		Buying:   op.Buying,
		Amount:   op.Amount,
		Price:    op.Price,
	}
	if err := entry.Validate(); err != nil {
		return ManageOfferResult{Code: ManageOfferMalformed}, nil
	}

	ex := exchange.New(tx, d, logger)
	selfCross := func(o ledger.OfferEntry) exchange.FilterDecision {
		if o.SellerID == op.Seller {
			return exchange.FilterStop
		}
		return exchange.FilterKeep
	}
	// An offer posted can immediately cross resting opposite-side offers,
	// same as stellar-core's ManageOfferOpFrame::applyOperation: the new
	// offer is a taker willing to spend up to its own Amount of Selling,
	// with no a-priori cap on how much Buying it absorbs in return — so
	// wantB is effectively unbounded and the Selling cap is what stops the
	// walk (ConvertWithOffers clamps payA to maxSendA and returns partial
	// once no further cross can be afforded).
	sentA, receivedB, result, err := ex.ConvertWithOffers(op.Selling, op.Amount, op.Buying, ledger.MaxBalance, selfCross)
	if err != nil {
		return ManageOfferResult{}, err
	}
	if result == exchange.ResultFilterStop {
		return ManageOfferResult{Code: ManageOfferCrossSelf}, nil
	}

	// Unlike PathPayment, there is no later hop to carry sentA/receivedB
	// forward into: op.Seller is both the taker and the final endpoint, so
	// the crossed amount has to land in its own balances here.
	if sentA > 0 {
		if ok, err := debitAccountBalance(tx, d, op.Seller, op.Selling, sentA); err != nil {
			return ManageOfferResult{}, err
		} else if !ok {
			return ManageOfferResult{Code: ManageOfferUnderfunded}, nil
		}
		if ok, err := creditAccountBalance(tx, d, op.Seller, op.Buying, receivedB); err != nil {
			return ManageOfferResult{}, err
		} else if !ok {
			return ManageOfferResult{Code: ManageOfferLineFull}, nil
		}
	}

	trail := make([]Trade, 0, len(ex.OfferTrail()))
	for _, tr := range ex.OfferTrail() {
		trail = append(trail, Trade{OfferID: tr.OfferID, SellerID: tr.SellerID, AmountSold: tr.AmountSold, AmountBought: tr.AmountBought})
	}

	remaining := op.Amount - sentA

	if remaining <= 0 {
		if op.OfferID != 0 {
			if err := tx.Offers.StoreDelete(d, ledger.OfferKey(op.Seller, offerID)); err != nil {
				return ManageOfferResult{}, err
			}
		}
		return ManageOfferResult{Code: ManageOfferSuccess, OfferID: offerID, Trail: trail}, nil
	}

	entry.Amount = remaining
	frame := ledger.NewOfferFrame(entry)
	if err := tx.Offers.StoreAddOrChange(d, frame); err != nil {
		return ManageOfferResult{}, err
	}
	return ManageOfferResult{Code: ManageOfferSuccess, OfferID: offerID, Trail: trail}, nil
}

func deleteOffer(tx *store.Tx, d *delta.Delta, op ManageOfferOp) (ManageOfferResult, error) {
	if op.OfferID == 0 {
		return ManageOfferResult{Code: ManageOfferNotFound}, nil
	}
	_, ok, err := tx.Offers.Load(ledger.OfferKey(op.Seller, op.OfferID))
	if err != nil {
		return ManageOfferResult{}, err
	}
	if !ok {
		return ManageOfferResult{Code: ManageOfferNotFound}, nil
	}
	if err := tx.Offers.StoreDelete(d, ledger.OfferKey(op.Seller, op.OfferID)); err != nil {
		return ManageOfferResult{}, err
	}
	return ManageOfferResult{Code: ManageOfferSuccess, OfferID: op.OfferID}, nil
}

func checkOfferIssuers(tx *store.Tx, op ManageOfferOp) (ManageOfferResultCode, error) {
	if op.Selling.Type != ledger.AssetTypeNative {
		ok, err := tx.Accounts.Exists(op.Selling.Issuer)
		if err != nil {
			return 0, err
		}
		if !ok {
			return ManageOfferSellNoIssuer, nil
		}
	}
	if op.Buying.Type != ledger.AssetTypeNative {
		ok, err := tx.Accounts.Exists(op.Buying.Issuer)
		if err != nil {
			return 0, err
		}
		if !ok {
			return ManageOfferBuyNoIssuer, nil
		}
	}
	return ManageOfferSuccess, nil
}

func checkOfferTrust(tx *store.Tx, op ManageOfferOp) (ManageOfferResultCode, error) {
	if op.Selling.Type != ledger.AssetTypeNative {
		line, ok, err := tx.TrustLines.Load(ledger.TrustLineKey(op.Seller, op.Selling))
		if err != nil {
			return 0, err
		}
		if !ok {
			return ManageOfferSellNoTrust, nil
		}
		if !line.TrustLine().IsAuthorized() {
			return ManageOfferSellingNotAuthorized, nil
		}
		if line.TrustLine().Balance < op.Amount {
			return ManageOfferUnderfunded, nil
		}
	}
	if op.Buying.Type != ledger.AssetTypeNative {
		line, ok, err := tx.TrustLines.Load(ledger.TrustLineKey(op.Seller, op.Buying))
		if err != nil {
			return 0, err
		}
		if !ok {
			return ManageOfferBuyNoTrust, nil
		}
		if !line.TrustLine().IsAuthorized() {
			return ManageOfferBuyingNotAuthorized, nil
		}
	}
	return ManageOfferSuccess, nil
}
