package ops

import (
	"github.com/stellar/go/support/log"

	"github.com/stellar/ledgerclose/internal/delta"
	"github.com/stellar/ledgerclose/internal/exchange"
	"github.com/stellar/ledgerclose/internal/ledger"
	"github.com/stellar/ledgerclose/internal/store"
)

// PathPaymentOp sends SendAsset from Source, converting hop by hop along
// Path (intermediate assets only — excludes SendAsset and DestAsset) until
// DestAmount of DestAsset lands in Destination's account. Direct
// generalization of PathPaymentOpFrame::doApply/doCheckValid (spec §4.5).
type PathPaymentOp struct {
	Source      ledger.AccountID
	Destination ledger.AccountID
	SendAsset   ledger.Asset
	SendMax     int64
	DestAsset   ledger.Asset
	DestAmount  int64
	Path        []ledger.Asset
}

// Trade is one offer crossed while routing a path payment, reported in
// path order (source side to destination side).
type Trade struct {
	OfferID      uint64
	SellerID     ledger.AccountID
	AmountSold   int64
	AmountBought int64
}

// PathPaymentResult is the outcome of one PathPayment call.
type PathPaymentResult struct {
	Code       PathPaymentResultCode
	SendAmount int64 // actual amount of SendAsset debited from Source
	Trail      []Trade
}

// PathPayment applies op against tx, journaling every mutation (crossed
// offers, the final source debit, and destination credit) into d.
func PathPayment(tx *store.Tx, d *delta.Delta, logger *log.Entry, op PathPaymentOp) (PathPaymentResult, error) {
	if op.DestAmount <= 0 || op.SendMax <= 0 {
		return PathPaymentResult{Code: PathPaymentMalformed}, nil
	}

	destExists, err := tx.Accounts.Exists(op.Destination)
	if err != nil {
		return PathPaymentResult{}, err
	}
	if !destExists {
		return PathPaymentResult{Code: PathPaymentNoDestination}, nil
	}

	if code, err := checkIssuers(tx, op.SendAsset, op.DestAsset, op.Path); err != nil || code != PathPaymentSuccess {
		return PathPaymentResult{Code: code}, err
	}

	if code, err := checkHolding(tx, op.Source, op.SendAsset, true); err != nil || code != PathPaymentSuccess {
		return PathPaymentResult{Code: code}, err
	}
	if code, err := checkHolding(tx, op.Destination, op.DestAsset, false); err != nil || code != PathPaymentSuccess {
		return PathPaymentResult{Code: code}, err
	}
	if code, err := checkRoom(tx, op.Destination, op.DestAsset, op.DestAmount); err != nil || code != PathPaymentSuccess {
		return PathPaymentResult{Code: code}, err
	}

	assets := make([]ledger.Asset, 0, len(op.Path)+2)
	assets = append(assets, op.SendAsset)
	assets = append(assets, op.Path...)
	assets = append(assets, op.DestAsset)

	wantB := op.DestAmount
	var trail []Trade

	for i := len(assets) - 1; i >= 1; i-- {
		b := assets[i]
		a := assets[i-1]
		if a.Equal(b) {
			continue
		}

		ex := exchange.New(tx, d, logger)
		sentA, receivedB, result, err := ex.ConvertWithOffers(a, ledger.MaxBalance, b, wantB, nil)
		if err != nil {
			return PathPaymentResult{}, err
		}
		if result == exchange.ResultPartial {
			return PathPaymentResult{Code: PathPaymentTooFewOffers}, nil
		}
		if receivedB != wantB {
			return PathPaymentResult{Code: PathPaymentTooFewOffers}, nil
		}

		hopTrail := make([]Trade, 0, len(ex.OfferTrail()))
		for _, tr := range ex.OfferTrail() {
			hopTrail = append(hopTrail, Trade{OfferID: tr.OfferID, SellerID: tr.SellerID, AmountSold: tr.AmountSold, AmountBought: tr.AmountBought})
		}
		trail = append(append([]Trade{}, hopTrail...), trail...)
		wantB = sentA
	}

	sendAmount := wantB
	if sendAmount > op.SendMax {
		return PathPaymentResult{Code: PathPaymentOverSendMax}, nil
	}

	if ok, err := debitAccountBalance(tx, d, op.Source, op.SendAsset, sendAmount); err != nil {
		return PathPaymentResult{}, err
	} else if !ok {
		return PathPaymentResult{Code: PathPaymentUnderfunded}, nil
	}
	if ok, err := creditAccountBalance(tx, d, op.Destination, op.DestAsset, op.DestAmount); err != nil {
		return PathPaymentResult{}, err
	} else if !ok {
		return PathPaymentResult{Code: PathPaymentLineFull}, nil
	}

	return PathPaymentResult{Code: PathPaymentSuccess, SendAmount: sendAmount, Trail: trail}, nil
}

// checkIssuers verifies every non-native asset along the path (including
// the endpoints) has an issuer account on file.
func checkIssuers(tx *store.Tx, send, dest ledger.Asset, path []ledger.Asset) (PathPaymentResultCode, error) {
	all := append([]ledger.Asset{send, dest}, path...)
	for _, a := range all {
		if a.Type == ledger.AssetTypeNative {
			continue
		}
		ok, err := tx.Accounts.Exists(a.Issuer)
		if err != nil {
			return 0, err
		}
		if !ok {
			return PathPaymentNoIssuer, nil
		}
	}
	return PathPaymentSuccess, nil
}

// checkHolding verifies account can hold asset: a native balance always
// qualifies; a credit asset requires an existing, authorized trustline.
// isSource selects between the SRC_* and plain result codes (spec §4.5).
func checkHolding(tx *store.Tx, account ledger.AccountID, asset ledger.Asset, isSource bool) (PathPaymentResultCode, error) {
	if asset.Type == ledger.AssetTypeNative {
		return PathPaymentSuccess, nil
	}
	line, ok, err := tx.TrustLines.Load(ledger.TrustLineKey(account, asset))
	if err != nil {
		return 0, err
	}
	if !ok {
		if isSource {
			return PathPaymentSrcNoTrust, nil
		}
		return PathPaymentNoTrust, nil
	}
	if !line.TrustLine().IsAuthorized() {
		if isSource {
			return PathPaymentSrcNotAuthorized, nil
		}
		return PathPaymentNotAuthorized, nil
	}
	return PathPaymentSuccess, nil
}

// checkRoom verifies destination has room for amount more of asset without
// exceeding its trustline limit (a no-op for the native asset, whose
// capacity is INT64_MAX).
func checkRoom(tx *store.Tx, destination ledger.AccountID, asset ledger.Asset, amount int64) (PathPaymentResultCode, error) {
	if asset.Type == ledger.AssetTypeNative {
		return PathPaymentSuccess, nil
	}
	line, ok, err := tx.TrustLines.Load(ledger.TrustLineKey(destination, asset))
	if err != nil {
		return 0, err
	}
	if !ok {
		return PathPaymentNoTrust, nil
	}
	t := line.TrustLine()
	if t.Balance+amount > t.Limit {
		return PathPaymentLineFull, nil
	}
	return PathPaymentSuccess, nil
}

func debitAccountBalance(tx *store.Tx, d *delta.Delta, account ledger.AccountID, asset ledger.Asset, amount int64) (bool, error) {
	return adjustAccountBalance(tx, d, account, asset, -amount)
}

func creditAccountBalance(tx *store.Tx, d *delta.Delta, account ledger.AccountID, asset ledger.Asset, amount int64) (bool, error) {
	return adjustAccountBalance(tx, d, account, asset, amount)
}

// adjustAccountBalance mirrors exchange's balance adjustment, duplicated
// here (rather than exported from internal/exchange) because PathPayment's
// final debit/credit is not itself a cross — it is the one balance
// movement OfferExchange never touches (spec §4.5: "only the final source
// debit and destination credit move real balances outside the order
// book").
func adjustAccountBalance(tx *store.Tx, d *delta.Delta, account ledger.AccountID, asset ledger.Asset, amount int64) (bool, error) {
	if asset.Type == ledger.AssetTypeNative {
		frame, ok, err := tx.Accounts.Load(ledger.AccountKey(account))
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
		if err := tx.Accounts.StoreChange(d, frame); err != nil {
			return false, err
		}
		return true, nil
	}

	frame, ok, err := tx.TrustLines.Load(ledger.TrustLineKey(account, asset))
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	t := frame.TrustLine()
	if !t.AddBalance(amount) {
		return false, nil
	}
	if err := tx.TrustLines.StoreChange(d, frame); err != nil {
		return false, err
	}
	return true, nil
}
