package ops

import (
	"github.com/stellar/ledgerclose/internal/delta"
	"github.com/stellar/ledgerclose/internal/ledger"
	"github.com/stellar/ledgerclose/internal/store"
)

// AllowTrustOp authorizes or deauthorizes trustor's line in the asset
// issued by source, direct generalization of
// AllowTrustOpFrame::doApply/doCheckValid (spec §4.6).
type AllowTrustOp struct {
	Source    ledger.AccountID // the issuer
	Trustor   ledger.AccountID
	Asset     ledger.Asset // issuer field is ignored; source is authoritative
	Authorize bool
}

// AllowTrust applies op against tx, journaling any mutation into d.
func AllowTrust(tx *store.Tx, d *delta.Delta, op AllowTrustOp) (AllowTrustResultCode, error) {
	if op.Asset.Type == ledger.AssetTypeNative {
		return AllowTrustMalformed, nil
	}
	asset, err := ledger.NewCreditAsset(op.Asset.CodeString(), op.Source)
	if err != nil {
		return AllowTrustMalformed, nil
	}

	issuer, ok, err := tx.Accounts.Load(ledger.AccountKey(op.Source))
	if err != nil {
		return 0, err
	}
	if !ok {
		return AllowTrustMalformed, nil
	}
	flags := issuer.Account().Flags

	if flags&ledger.AuthRequiredFlag == 0 {
		return AllowTrustNotRequired, nil
	}
	if !op.Authorize && flags&ledger.AuthRevocableFlag == 0 {
		return AllowTrustCantRevoke, nil
	}

	line, ok, err := tx.TrustLines.Load(ledger.TrustLineKey(op.Trustor, asset))
	if err != nil {
		return 0, err
	}
	if !ok {
		return AllowTrustNoTrustLine, nil
	}

	t := line.TrustLine()
	if op.Authorize {
		t.Flags |= ledger.TrustLineAuthorizedFlag
	} else {
		t.Flags &^= ledger.TrustLineAuthorizedFlag
	}
	if err := tx.TrustLines.StoreChange(d, line); err != nil {
		return 0, err
	}
	return AllowTrustSuccess, nil
}
