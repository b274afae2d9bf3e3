package store

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"github.com/stellar/ledgerclose/internal/delta"
	"github.com/stellar/ledgerclose/internal/ledger"
)

const offersTable = "offers"

var offerColumns = []string{
	"sellerid", "offerid",
	"sellingassettype", "sellingassetcode", "sellingissuer",
	"buyingassettype", "buyingassetcode", "buyingissuer",
	"amount", "pricen", "priced", "flags",
}

// OfferRepo is the typed EntryStore surface for OfferEntry, including the
// best-offer order-book query that §4.2 calls out as consensus-critical.
type OfferRepo struct {
	tx    *Tx
	cache *ledger.Cache
}

type offerRow struct {
	SellerID         string         `db:"sellerid"`
	OfferID          uint64         `db:"offerid"`
	SellingAssetType int32          `db:"sellingassettype"`
	SellingAssetCode sql.NullString `db:"sellingassetcode"`
	SellingIssuer    sql.NullString `db:"sellingissuer"`
	BuyingAssetType  int32          `db:"buyingassettype"`
	BuyingAssetCode  sql.NullString `db:"buyingassetcode"`
	BuyingIssuer     sql.NullString `db:"buyingissuer"`
	Amount           int64          `db:"amount"`
	PriceN           int32          `db:"pricen"`
	PriceD           int32          `db:"priced"`
	Flags            uint32         `db:"flags"`
}

func assetFromColumns(assetType int32, code, issuerStr sql.NullString) (ledger.Asset, error) {
	if ledger.AssetType(assetType) == ledger.AssetTypeNative {
		return ledger.NativeAsset(), nil
	}
	issuer, err := ledger.ParseAccountID(issuerStr.String)
	if err != nil {
		return ledger.Asset{}, err
	}
	return ledger.NewCreditAsset(code.String, issuer)
}

func assetColumns(a ledger.Asset) (assetType int32, code, issuer sql.NullString) {
	assetType = int32(a.Type)
	if a.Type == ledger.AssetTypeNative {
		return assetType, sql.NullString{}, sql.NullString{}
	}
	return assetType, sql.NullString{String: a.CodeString(), Valid: true}, sql.NullString{String: a.Issuer.String(), Valid: true}
}

func (r offerRow) toEntry() (ledger.OfferEntry, error) {
	sellerID, err := ledger.ParseAccountID(r.SellerID)
	if err != nil {
		return ledger.OfferEntry{}, err
	}
	selling, err := assetFromColumns(r.SellingAssetType, r.SellingAssetCode, r.SellingIssuer)
	if err != nil {
		return ledger.OfferEntry{}, err
	}
	buying, err := assetFromColumns(r.BuyingAssetType, r.BuyingAssetCode, r.BuyingIssuer)
	if err != nil {
		return ledger.OfferEntry{}, err
	}
	return ledger.OfferEntry{
		SellerID: sellerID,
		OfferID:  r.OfferID,
		Selling:  selling,
		Buying:   buying,
		Amount:   r.Amount,
		Price:    ledger.Price{N: r.PriceN, D: r.PriceD},
		Flags:    r.Flags,
	}, nil
}

func rowFromOffer(o ledger.OfferEntry) offerRow {
	sellingType, sellingCode, sellingIssuer := assetColumns(o.Selling)
	buyingType, buyingCode, buyingIssuer := assetColumns(o.Buying)
	return offerRow{
		SellerID:         o.SellerID.String(),
		OfferID:          o.OfferID,
		SellingAssetType: sellingType,
		SellingAssetCode: sellingCode,
		SellingIssuer:    sellingIssuer,
		BuyingAssetType:  buyingType,
		BuyingAssetCode:  buyingCode,
		BuyingIssuer:     buyingIssuer,
		Amount:           o.Amount,
		PriceN:           o.Price.N,
		PriceD:           o.Price.D,
		Flags:            o.Flags,
	}
}

// Load is cache-first.
func (r *OfferRepo) Load(key ledger.LedgerKey) (*ledger.OfferFrame, bool, error) {
	if e, ok := r.cache.Get(key); ok {
		return ledger.NewOfferFrame(*e.Offer), true, nil
	}
	var row offerRow
	q := sq.Select(offerColumns...).From(offersTable).
		Where(sq.Eq{"sellerid": key.SellerID.String(), "offerid": key.OfferID})
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
	r.cache.Put(key, ledger.LedgerEntry{Type: ledger.EntryTypeOffer, Offer: &entry})
	return ledger.NewOfferFrame(entry), true, nil
}

// Exists never consults the cache.
func (r *OfferRepo) Exists(sellerID ledger.AccountID, offerID uint64) (bool, error) {
	var n int
	err := r.tx.builder.Select("COUNT(*)").From(offersTable).
		Where(sq.Eq{"sellerid": sellerID.String(), "offerid": offerID}).QueryRow().Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BestOffers returns offers selling `selling` for `buying`, ordered
// (price ASC, offerid ASC) and paged by limit/offset — the deterministic
// order two independent nodes must agree on when crossing the book (§4.2).
func (r *OfferRepo) BestOffers(selling, buying ledger.Asset, limit, offset int) ([]*ledger.OfferFrame, error) {
	q := sq.Select(offerColumns...).From(offersTable)

	sellingType, sellingCode, sellingIssuer := assetColumns(selling)
	if selling.Type == ledger.AssetTypeNative {
		q = q.Where(sq.Eq{"sellingassettype": sellingType})
	} else {
		q = q.Where(sq.Eq{"sellingassettype": sellingType, "sellingassetcode": sellingCode.String, "sellingissuer": sellingIssuer.String})
	}

	buyingType, buyingCode, buyingIssuer := assetColumns(buying)
	if buying.Type == ledger.AssetTypeNative {
		q = q.Where(sq.Eq{"buyingassettype": buyingType})
	} else {
		q = q.Where(sq.Eq{"buyingassettype": buyingType, "buyingassetcode": buyingCode.String, "buyingissuer": buyingIssuer.String})
	}

	q = q.OrderBy("price ASC", "offerid ASC").Limit(uint64(limit)).Offset(uint64(offset))

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var rows []offerRow
	if err := r.tx.sqlTx.Select(&rows, sqlStr, args...); err != nil {
		return nil, err
	}
	out := make([]*ledger.OfferFrame, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toEntry()
		if err != nil {
			return nil, err
		}
		out = append(out, ledger.NewOfferFrame(entry))
	}
	return out, nil
}

// StoreAdd inserts a new offer row, ported from OfferFrame::storeAdd.
func (r *OfferRepo) StoreAdd(d *delta.Delta, frame *ledger.OfferFrame) error {
	key := frame.Key()
	r.cache.Flush(key)
	o := *frame.Offer()
	row := rowFromOffer(o)
	price, err := o.ComputedPrice()
	if err != nil {
		return err
	}
	res, err := r.tx.builder.Insert(offersTable).
		Columns("sellerid", "offerid", "sellingassettype", "sellingassetcode", "sellingissuer",
			"buyingassettype", "buyingassetcode", "buyingissuer", "amount", "pricen", "priced", "price", "flags").
		Values(row.SellerID, row.OfferID, row.SellingAssetType, row.SellingAssetCode, row.SellingIssuer,
			row.BuyingAssetType, row.BuyingAssetCode, row.BuyingIssuer, row.Amount, row.PriceN, row.PriceD, price, row.Flags).
		Exec()
	if err != nil {
		return err
	}
	if err := checkAffectedOne(res, "offer insert"); err != nil {
		return err
	}
	d.AddEntry(frame)
	return nil
}

// StoreChange updates amount and price, ported from OfferFrame::storeChange.
func (r *OfferRepo) StoreChange(d *delta.Delta, frame *ledger.OfferFrame) error {
	key := frame.Key()
	r.cache.Flush(key)
	o := *frame.Offer()
	price, err := o.ComputedPrice()
	if err != nil {
		return err
	}
	res, err := r.tx.builder.Update(offersTable).
		Set("amount", o.Amount).
		Set("pricen", o.Price.N).
		Set("priced", o.Price.D).
		Set("price", price).
		Where(sq.Eq{"offerid": o.OfferID}).
		Exec()
	if err != nil {
		return err
	}
	if err := checkAffectedOne(res, "offer update"); err != nil {
		return err
	}
	d.ModEntry(frame)
	return nil
}

// StoreDelete removes an offer row by key.
func (r *OfferRepo) StoreDelete(d *delta.Delta, key ledger.LedgerKey) error {
	r.cache.Flush(key)
	_, err := r.tx.builder.Delete(offersTable).Where(sq.Eq{"offerid": key.OfferID}).Exec()
	if err != nil {
		return err
	}
	d.DeleteEntry(key)
	return nil
}

// StoreAddOrChange branches on Exists.
func (r *OfferRepo) StoreAddOrChange(d *delta.Delta, frame *ledger.OfferFrame) error {
	o := frame.Offer()
	exists, err := r.Exists(o.SellerID, o.OfferID)
	if err != nil {
		return err
	}
	if exists {
		return r.StoreChange(d, frame)
	}
	return r.StoreAdd(d, frame)
}
