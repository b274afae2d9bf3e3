package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/stellar/ledgerclose/internal/delta"
	"github.com/stellar/ledgerclose/internal/ledger"
)

const trustLinesTable = "trustlines"

var trustLineColumns = []string{"accountid", "assettype", "assetcode", "issuer", "balance", "tlimit", "flags"}

// TrustLineRepo is the typed EntryStore surface for TrustLineEntry.
type TrustLineRepo struct {
	tx    *Tx
	cache *ledger.Cache
}

type trustLineRow struct {
	AccountID string `db:"accountid"`
	AssetType int32  `db:"assettype"`
	AssetCode string `db:"assetcode"`
	Issuer    string `db:"issuer"`
	Balance   int64  `db:"balance"`
	Limit     int64  `db:"tlimit"`
	Flags     uint32 `db:"flags"`
}

func (r trustLineRow) toEntry() (ledger.TrustLineEntry, error) {
	accountID, err := ledger.ParseAccountID(r.AccountID)
	if err != nil {
		return ledger.TrustLineEntry{}, err
	}
	issuer, err := ledger.ParseAccountID(r.Issuer)
	if err != nil {
		return ledger.TrustLineEntry{}, err
	}
	asset, err := ledger.NewCreditAsset(r.AssetCode, issuer)
	if err != nil {
		return ledger.TrustLineEntry{}, err
	}
	return ledger.TrustLineEntry{
		AccountID: accountID,
		Asset:     asset,
		Balance:   r.Balance,
		Limit:     r.Limit,
		Flags:     r.Flags,
	}, nil
}

func rowFromTrustLine(t ledger.TrustLineEntry) trustLineRow {
	return trustLineRow{
		AccountID: t.AccountID.String(),
		AssetType: int32(t.Asset.Type),
		AssetCode: t.Asset.CodeString(),
		Issuer:    t.Asset.Issuer.String(),
		Balance:   t.Balance,
		Limit:     t.Limit,
		Flags:     t.Flags,
	}
}

func trustLineWhere(accountID ledger.AccountID, asset ledger.Asset) sq.Eq {
	return sq.Eq{
		"accountid": accountID.String(),
		"assetcode": asset.CodeString(),
		"issuer":    asset.Issuer.String(),
	}
}

// Load is cache-first.
func (r *TrustLineRepo) Load(key ledger.LedgerKey) (*ledger.TrustLineFrame, bool, error) {
	if e, ok := r.cache.Get(key); ok {
		return ledger.NewTrustLineFrame(*e.TrustLine), true, nil
	}
	var row trustLineRow
	q := sq.Select(trustLineColumns...).From(trustLinesTable).
		Where(trustLineWhere(key.TrustAccountID, key.TrustAsset))
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, false, err
	}
	err = r.tx.sqlTx.Get(&row, sqlStr, args...)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	entry, err := row.toEntry()
	if err != nil {
		return nil, false, err
	}
	r.cache.Put(key, ledger.LedgerEntry{Type: ledger.EntryTypeTrustLine, TrustLine: &entry})
	return ledger.NewTrustLineFrame(entry), true, nil
}

// Exists never consults the cache.
func (r *TrustLineRepo) Exists(accountID ledger.AccountID, asset ledger.Asset) (bool, error) {
	var n int
	err := r.tx.builder.Select("COUNT(*)").From(trustLinesTable).
		Where(trustLineWhere(accountID, asset)).QueryRow().Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StoreAdd inserts a new trustline row.
func (r *TrustLineRepo) StoreAdd(d *delta.Delta, frame *ledger.TrustLineFrame) error {
	key := frame.Key()
	r.cache.Flush(key)
	row := rowFromTrustLine(*frame.TrustLine())
	res, err := r.tx.builder.Insert(trustLinesTable).
		Columns(trustLineColumns...).
		Values(row.AccountID, row.AssetType, row.AssetCode, row.Issuer, row.Balance, row.Limit, row.Flags).
		Exec()
	if err != nil {
		return err
	}
	if err := checkAffectedOne(res, "trustline insert"); err != nil {
		return err
	}
	d.AddEntry(frame)
	return nil
}

// StoreChange updates an existing trustline row by key.
func (r *TrustLineRepo) StoreChange(d *delta.Delta, frame *ledger.TrustLineFrame) error {
	key := frame.Key()
	r.cache.Flush(key)
	t := frame.TrustLine()
	res, err := r.tx.builder.Update(trustLinesTable).
		Set("balance", t.Balance).
		Set("flags", t.Flags).
		Where(trustLineWhere(t.AccountID, t.Asset)).
		Exec()
	if err != nil {
		return err
	}
	if err := checkAffectedOne(res, "trustline update"); err != nil {
		return err
	}
	d.ModEntry(frame)
	return nil
}

// StoreDelete removes a trustline row by key.
func (r *TrustLineRepo) StoreDelete(d *delta.Delta, key ledger.LedgerKey) error {
	r.cache.Flush(key)
	_, err := r.tx.builder.Delete(trustLinesTable).
		Where(trustLineWhere(key.TrustAccountID, key.TrustAsset)).Exec()
	if err != nil {
		return err
	}
	d.DeleteEntry(key)
	return nil
}

// StoreAddOrChange branches on Exists.
func (r *TrustLineRepo) StoreAddOrChange(d *delta.Delta, frame *ledger.TrustLineFrame) error {
	t := frame.TrustLine()
	exists, err := r.Exists(t.AccountID, t.Asset)
	if err != nil {
		return err
	}
	if exists {
		return r.StoreChange(d, frame)
	}
	return r.StoreAdd(d, frame)
}
