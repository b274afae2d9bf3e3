package store

import (
	"database/sql"
	"encoding/hex"

	sq "github.com/Masterminds/squirrel"

	"github.com/stellar/ledgerclose/internal/ledger"
)

const ledgerHeadersTable = "ledgerheaders"

var headerColumns = []string{
	"ledgerseq", "previoushash", "txsethash", "hash", "closetime", "basefee", "maxtxsetsize", "basereserve",
}

// HeaderRepo is the typed EntryStore surface for ledger.Header: unlike
// AccountRepo/TrustLineRepo/OfferRepo it has no read-through cache, since a
// header is written at most once per close and read back at most once per
// close (to find the chain tip), never hot-looked-up mid-apply.
type HeaderRepo struct {
	tx *Tx
}

type headerRow struct {
	LedgerSeq    uint32 `db:"ledgerseq"`
	PreviousHash string `db:"previoushash"`
	TxSetHash    string `db:"txsethash"`
	Hash         string `db:"hash"`
	CloseTime    int64  `db:"closetime"`
	BaseFee      uint32 `db:"basefee"`
	MaxTxSetSize uint32 `db:"maxtxsetsize"`
	BaseReserve  int64  `db:"basereserve"`
}

func (r headerRow) toHeader() (ledger.Header, ledger.Hash, error) {
	h := ledger.Header{
		LedgerSeq:    r.LedgerSeq,
		CloseTime:    r.CloseTime,
		BaseFee:      r.BaseFee,
		MaxTxSetSize: r.MaxTxSetSize,
		BaseReserve:  r.BaseReserve,
	}
	prev, err := decodeHash(r.PreviousHash)
	if err != nil {
		return ledger.Header{}, ledger.Hash{}, err
	}
	h.PreviousHash = prev
	txSet, err := decodeHash(r.TxSetHash)
	if err != nil {
		return ledger.Header{}, ledger.Hash{}, err
	}
	h.TxSetHash = txSet
	hash, err := decodeHash(r.Hash)
	if err != nil {
		return ledger.Header{}, ledger.Hash{}, err
	}
	return h, hash, nil
}

func decodeHash(s string) (ledger.Hash, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ledger.Hash{}, err
	}
	var h ledger.Hash
	copy(h[:], raw)
	return h, nil
}

// Latest returns the header with the highest LedgerSeq, its own hash, and
// whether any header exists yet (false on a fresh, pre-genesis store).
func (r *HeaderRepo) Latest() (ledger.Header, ledger.Hash, bool, error) {
	var row headerRow
	q := sq.Select(headerColumns...).From(ledgerHeadersTable).OrderBy("ledgerseq DESC").Limit(1)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return ledger.Header{}, ledger.Hash{}, false, err
	}
	err = r.tx.sqlTx.Get(&row, sqlStr, args...)
	if err == sql.ErrNoRows {
		return ledger.Header{}, ledger.Hash{}, false, nil
	}
	if err != nil {
		return ledger.Header{}, ledger.Hash{}, false, err
	}
	header, hash, err := row.toHeader()
	return header, hash, true, err
}

// Insert persists a newly closed header, keyed by LedgerSeq.
func (r *HeaderRepo) Insert(header ledger.Header, hash ledger.Hash) error {
	_, err := r.tx.builder.Insert(ledgerHeadersTable).
		Columns(headerColumns...).
		Values(
			header.LedgerSeq,
			hex.EncodeToString(header.PreviousHash[:]),
			hex.EncodeToString(header.TxSetHash[:]),
			hex.EncodeToString(hash[:]),
			header.CloseTime,
			header.BaseFee,
			header.MaxTxSetSize,
			header.BaseReserve,
		).Exec()
	if err != nil {
		return err
	}
	return nil
}
