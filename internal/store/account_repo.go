package store

import (
	"database/sql"
	"encoding/hex"

	sq "github.com/Masterminds/squirrel"
	"github.com/stellar/go/support/errors"

	"github.com/stellar/ledgerclose/internal/delta"
	"github.com/stellar/ledgerclose/internal/ledger"
	"github.com/stellar/ledgerclose/internal/xdrcodec"
)

const accountsTable = "accounts"

var accountColumns = []string{"accountid", "balance", "seqnum", "flags", "thresholds", "signers"}

// AccountRepo is the typed EntryStore surface for AccountEntry.
type AccountRepo struct {
	tx    *Tx
	cache *ledger.Cache
}

func encodeSigners(signers []ledger.Signer) string {
	e := &xdrcodec.Encoder{}
	e.Uint32(uint32(len(signers)))
	for _, s := range signers {
		e.Fixed(s.Key[:])
		e.Uint32(s.Weight)
	}
	return hex.EncodeToString(e.Bytes())
}

func decodeSigners(s string) ([]ledger.Signer, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	d := xdrcodec.NewDecoder(raw)
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Signer, 0, n)
	for i := uint32(0); i < n; i++ {
		key, err := d.Fixed(32)
		if err != nil {
			return nil, err
		}
		weight, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		var signer ledger.Signer
		copy(signer.Key[:], key)
		signer.Weight = weight
		out = append(out, signer)
	}
	return out, nil
}

type accountRow struct {
	AccountID  string `db:"accountid"`
	Balance    int64  `db:"balance"`
	SeqNum     int64  `db:"seqnum"`
	Flags      uint32 `db:"flags"`
	Thresholds string `db:"thresholds"`
	Signers    string `db:"signers"`
}

func (r accountRow) toEntry() (ledger.AccountEntry, error) {
	accountID, err := ledger.ParseAccountID(r.AccountID)
	if err != nil {
		return ledger.AccountEntry{}, err
	}
	th, err := hex.DecodeString(r.Thresholds)
	if err != nil {
		return ledger.AccountEntry{}, err
	}
	if len(th) != 4 {
		return ledger.AccountEntry{}, errors.Wrap(ErrStorageInvariantViolation, "malformed thresholds column")
	}
	signers, err := decodeSigners(r.Signers)
	if err != nil {
		return ledger.AccountEntry{}, err
	}
	var thresholds ledger.Thresholds
	copy(thresholds[:], th)
	return ledger.AccountEntry{
		AccountID:  accountID,
		Balance:    r.Balance,
		SeqNum:     r.SeqNum,
		Flags:      r.Flags,
		Thresholds: thresholds,
		Signers:    signers,
	}, nil
}

func rowFromAccount(a ledger.AccountEntry) accountRow {
	return accountRow{
		AccountID:  a.AccountID.String(),
		Balance:    a.Balance,
		SeqNum:     a.SeqNum,
		Flags:      a.Flags,
		Thresholds: hex.EncodeToString(a.Thresholds[:]),
		Signers:    encodeSigners(a.Signers),
	}
}

// Load is cache-first: on a cache miss it performs one SQL select and
// repopulates the cache; on a hit it constructs a fresh frame from the
// cached snapshot (§4.1).
func (r *AccountRepo) Load(key ledger.LedgerKey) (*ledger.AccountFrame, bool, error) {
	if e, ok := r.cache.Get(key); ok {
		return ledger.NewAccountFrame(*e.Account), true, nil
	}
	var row accountRow
	q := sq.Select(accountColumns...).From(accountsTable).Where(sq.Eq{"accountid": key.AccountID.String()})
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
	r.cache.Put(key, ledger.LedgerEntry{Type: ledger.EntryTypeAccount, Account: &entry})
	return ledger.NewAccountFrame(entry), true, nil
}

// Exists never consults the cache: the store is the source of truth for
// existence (§4.1).
func (r *AccountRepo) Exists(accountID ledger.AccountID) (bool, error) {
	var n int
	err := r.tx.builder.Select("COUNT(*)").From(accountsTable).
		Where(sq.Eq{"accountid": accountID.String()}).QueryRow().Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StoreAdd inserts a new account row, journals the addition, and flushes any
// stale cache entry for the key.
func (r *AccountRepo) StoreAdd(d *delta.Delta, frame *ledger.AccountFrame) error {
	key := frame.Key()
	r.cache.Flush(key)
	row := rowFromAccount(*frame.Account())
	res, err := r.tx.builder.Insert(accountsTable).
		Columns(accountColumns...).
		Values(row.AccountID, row.Balance, row.SeqNum, row.Flags, row.Thresholds, row.Signers).
		Exec()
	if err != nil {
		return err
	}
	if err := checkAffectedOne(res, "account insert"); err != nil {
		return err
	}
	d.AddEntry(frame)
	return nil
}

// StoreChange updates an existing account row by key.
func (r *AccountRepo) StoreChange(d *delta.Delta, frame *ledger.AccountFrame) error {
	key := frame.Key()
	r.cache.Flush(key)
	row := rowFromAccount(*frame.Account())
	res, err := r.tx.builder.Update(accountsTable).
		Set("balance", row.Balance).
		Set("seqnum", row.SeqNum).
		Set("flags", row.Flags).
		Set("thresholds", row.Thresholds).
		Set("signers", row.Signers).
		Where(sq.Eq{"accountid": row.AccountID}).
		Exec()
	if err != nil {
		return err
	}
	if err := checkAffectedOne(res, "account update"); err != nil {
		return err
	}
	d.ModEntry(frame)
	return nil
}

// StoreDelete removes an account row by key.
func (r *AccountRepo) StoreDelete(d *delta.Delta, key ledger.LedgerKey) error {
	r.cache.Flush(key)
	_, err := r.tx.builder.Delete(accountsTable).
		Where(sq.Eq{"accountid": key.AccountID.String()}).Exec()
	if err != nil {
		return err
	}
	d.DeleteEntry(key)
	return nil
}

// StoreAddOrChange branches on Exists, per §4.1.
func (r *AccountRepo) StoreAddOrChange(d *delta.Delta, frame *ledger.AccountFrame) error {
	exists, err := r.Exists(frame.Account().AccountID)
	if err != nil {
		return err
	}
	if exists {
		return r.StoreChange(d, frame)
	}
	return r.StoreAdd(d, frame)
}
