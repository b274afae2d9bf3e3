package ops

import (
	"github.com/stellar/go/support/errors"

	"github.com/stellar/ledgerclose/internal/ledger"
	"github.com/stellar/ledgerclose/internal/xdrcodec"
)

// OpType tags which applier a txset.Operation.Body decodes into — the
// discriminator a TransactionEnvelope's operation union would otherwise
// carry, restored here since internal/txset deliberately treats Body as
// opaque (spec's Non-goals exclude the full operation-union wire format).
type OpType int32

const (
	OpTypeAllowTrust OpType = iota
	OpTypePathPayment
	OpTypeManageOffer
)

func (t OpType) String() string {
	switch t {
	case OpTypeAllowTrust:
		return "allow_trust"
	case OpTypePathPayment:
		return "path_payment"
	case OpTypeManageOffer:
		return "manage_offer"
	default:
		return "unknown"
	}
}

func marshalAccountID(e *xdrcodec.Encoder, id ledger.AccountID) {
	e.Fixed(id[:])
}

func unmarshalAccountID(d *xdrcodec.Decoder) (ledger.AccountID, error) {
	raw, err := d.Fixed(32)
	if err != nil {
		return ledger.AccountID{}, err
	}
	var id ledger.AccountID
	copy(id[:], raw)
	return id, nil
}

func marshalAsset(e *xdrcodec.Encoder, a ledger.Asset) {
	e.Int32(int32(a.Type))
	if a.Type == ledger.AssetTypeNative {
		return
	}
	e.String(a.Code)
	marshalAccountID(e, a.Issuer)
}

func unmarshalAsset(d *xdrcodec.Decoder) (ledger.Asset, error) {
	t, err := d.Int32()
	if err != nil {
		return ledger.Asset{}, err
	}
	a := ledger.Asset{Type: ledger.AssetType(t)}
	if a.Type == ledger.AssetTypeNative {
		return a, nil
	}
	code, err := d.String()
	if err != nil {
		return ledger.Asset{}, err
	}
	a.Code = code
	issuer, err := unmarshalAccountID(d)
	if err != nil {
		return ledger.Asset{}, err
	}
	a.Issuer = issuer
	return a, nil
}

func marshalPrice(e *xdrcodec.Encoder, p ledger.Price) {
	e.Int32(p.N)
	e.Int32(p.D)
}

func unmarshalPrice(d *xdrcodec.Decoder) (ledger.Price, error) {
	n, err := d.Int32()
	if err != nil {
		return ledger.Price{}, err
	}
	dd, err := d.Int32()
	if err != nil {
		return ledger.Price{}, err
	}
	return ledger.Price{N: n, D: dd}, nil
}

// EncodeAllowTrust serializes op as a txset.Operation body tagged
// OpTypeAllowTrust.
func EncodeAllowTrust(op AllowTrustOp) []byte {
	e := &xdrcodec.Encoder{}
	e.Int32(int32(OpTypeAllowTrust))
	marshalAccountID(e, op.Source)
	marshalAccountID(e, op.Trustor)
	marshalAsset(e, op.Asset)
	e.Bool(op.Authorize)
	return e.Bytes()
}

// EncodePathPayment serializes op as a txset.Operation body tagged
// OpTypePathPayment.
func EncodePathPayment(op PathPaymentOp) []byte {
	e := &xdrcodec.Encoder{}
	e.Int32(int32(OpTypePathPayment))
	marshalAccountID(e, op.Source)
	marshalAccountID(e, op.Destination)
	marshalAsset(e, op.SendAsset)
	e.Int64(op.SendMax)
	marshalAsset(e, op.DestAsset)
	e.Int64(op.DestAmount)
	e.Uint32(uint32(len(op.Path)))
	for _, a := range op.Path {
		marshalAsset(e, a)
	}
	return e.Bytes()
}

// EncodeManageOffer serializes op as a txset.Operation body tagged
// OpTypeManageOffer.
func EncodeManageOffer(op ManageOfferOp) []byte {
	e := &xdrcodec.Encoder{}
	e.Int32(int32(OpTypeManageOffer))
	marshalAccountID(e, op.Seller)
	e.Uint64(op.OfferID)
	marshalAsset(e, op.Selling)
	marshalAsset(e, op.Buying)
	e.Int64(op.Amount)
	marshalPrice(e, op.Price)
	return e.Bytes()
}

// PeekType reads body's leading type tag without consuming the rest of the
// stream, the first step of internal/closemgr's per-operation dispatch.
func PeekType(body []byte) (OpType, error) {
	d := xdrcodec.NewDecoder(body)
	t, err := d.Int32()
	if err != nil {
		return 0, err
	}
	return OpType(t), nil
}

// DecodeAllowTrust parses body written by EncodeAllowTrust.
func DecodeAllowTrust(body []byte) (AllowTrustOp, error) {
	d := xdrcodec.NewDecoder(body)
	t, err := d.Int32()
	if err != nil {
		return AllowTrustOp{}, err
	}
	if OpType(t) != OpTypeAllowTrust {
		return AllowTrustOp{}, errors.New("ops: body is not an AllowTrustOp")
	}
	source, err := unmarshalAccountID(d)
	if err != nil {
		return AllowTrustOp{}, err
	}
	trustor, err := unmarshalAccountID(d)
	if err != nil {
		return AllowTrustOp{}, err
	}
	asset, err := unmarshalAsset(d)
	if err != nil {
		return AllowTrustOp{}, err
	}
	authorize, err := d.Bool()
	if err != nil {
		return AllowTrustOp{}, err
	}
	return AllowTrustOp{Source: source, Trustor: trustor, Asset: asset, Authorize: authorize}, nil
}

// DecodePathPayment parses body written by EncodePathPayment.
func DecodePathPayment(body []byte) (PathPaymentOp, error) {
	d := xdrcodec.NewDecoder(body)
	t, err := d.Int32()
	if err != nil {
		return PathPaymentOp{}, err
	}
	if OpType(t) != OpTypePathPayment {
		return PathPaymentOp{}, errors.New("ops: body is not a PathPaymentOp")
	}
	source, err := unmarshalAccountID(d)
	if err != nil {
		return PathPaymentOp{}, err
	}
	destination, err := unmarshalAccountID(d)
	if err != nil {
		return PathPaymentOp{}, err
	}
	sendAsset, err := unmarshalAsset(d)
	if err != nil {
		return PathPaymentOp{}, err
	}
	sendMax, err := d.Int64()
	if err != nil {
		return PathPaymentOp{}, err
	}
	destAsset, err := unmarshalAsset(d)
	if err != nil {
		return PathPaymentOp{}, err
	}
	destAmount, err := d.Int64()
	if err != nil {
		return PathPaymentOp{}, err
	}
	n, err := d.Uint32()
	if err != nil {
		return PathPaymentOp{}, err
	}
	path := make([]ledger.Asset, 0, n)
	for i := uint32(0); i < n; i++ {
		a, err := unmarshalAsset(d)
		if err != nil {
			return PathPaymentOp{}, err
		}
		path = append(path, a)
	}
	return PathPaymentOp{
		Source: source, Destination: destination,
		SendAsset: sendAsset, SendMax: sendMax,
		DestAsset: destAsset, DestAmount: destAmount,
		Path: path,
	}, nil
}

// DecodeManageOffer parses body written by EncodeManageOffer.
func DecodeManageOffer(body []byte) (ManageOfferOp, error) {
	d := xdrcodec.NewDecoder(body)
	t, err := d.Int32()
	if err != nil {
		return ManageOfferOp{}, err
	}
	if OpType(t) != OpTypeManageOffer {
		return ManageOfferOp{}, errors.New("ops: body is not a ManageOfferOp")
	}
	seller, err := unmarshalAccountID(d)
	if err != nil {
		return ManageOfferOp{}, err
	}
	offerID, err := d.Uint64()
	if err != nil {
		return ManageOfferOp{}, err
	}
	selling, err := unmarshalAsset(d)
	if err != nil {
		return ManageOfferOp{}, err
	}
	buying, err := unmarshalAsset(d)
	if err != nil {
		return ManageOfferOp{}, err
	}
	amount, err := d.Int64()
	if err != nil {
		return ManageOfferOp{}, err
	}
	price, err := unmarshalPrice(d)
	if err != nil {
		return ManageOfferOp{}, err
	}
	return ManageOfferOp{Seller: seller, OfferID: offerID, Selling: selling, Buying: buying, Amount: amount, Price: price}, nil
}
