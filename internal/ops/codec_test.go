package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/ledgerclose/internal/ledger"
)

func TestPeekTypeAndDecodeRoundTripAllowTrust(t *testing.T) {
	issuer := accountID(1)
	trustor := accountID(2)
	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)

	body := EncodeAllowTrust(AllowTrustOp{Source: issuer, Trustor: trustor, Asset: usd, Authorize: true})

	opType, err := PeekType(body)
	require.NoError(t, err)
	assert.Equal(t, OpTypeAllowTrust, opType)

	decoded, err := DecodeAllowTrust(body)
	require.NoError(t, err)
	assert.Equal(t, issuer, decoded.Source)
	assert.Equal(t, trustor, decoded.Trustor)
	assert.True(t, usd.Equal(decoded.Asset))
	assert.True(t, decoded.Authorize)
}

func TestPeekTypeAndDecodeRoundTripPathPayment(t *testing.T) {
	source := accountID(1)
	dest := accountID(2)
	issuer := accountID(3)
	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)
	eur, err := ledger.NewCreditAsset("EUR", issuer)
	require.NoError(t, err)

	op := PathPaymentOp{
		Source: source, Destination: dest,
		SendAsset: ledger.NativeAsset(), SendMax: 500,
		DestAsset: usd, DestAmount: 50,
		Path: []ledger.Asset{eur},
	}
	body := EncodePathPayment(op)

	opType, err := PeekType(body)
	require.NoError(t, err)
	assert.Equal(t, OpTypePathPayment, opType)

	decoded, err := DecodePathPayment(body)
	require.NoError(t, err)
	assert.Equal(t, op.Source, decoded.Source)
	assert.Equal(t, op.Destination, decoded.Destination)
	assert.True(t, op.SendAsset.Equal(decoded.SendAsset))
	assert.Equal(t, op.SendMax, decoded.SendMax)
	assert.True(t, op.DestAsset.Equal(decoded.DestAsset))
	assert.Equal(t, op.DestAmount, decoded.DestAmount)
	require.Len(t, decoded.Path, 1)
	assert.True(t, eur.Equal(decoded.Path[0]))
}

func TestPeekTypeAndDecodeRoundTripManageOffer(t *testing.T) {
	seller := accountID(1)
	issuer := accountID(2)
	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)

	op := ManageOfferOp{
		Seller: seller, OfferID: 7,
		Selling: ledger.NativeAsset(), Buying: usd,
		Amount: 1000, Price: ledger.Price{N: 1, D: 5},
	}
	body := EncodeManageOffer(op)

	opType, err := PeekType(body)
	require.NoError(t, err)
	assert.Equal(t, OpTypeManageOffer, opType)

	decoded, err := DecodeManageOffer(body)
	require.NoError(t, err)
	assert.Equal(t, op.Seller, decoded.Seller)
	assert.Equal(t, op.OfferID, decoded.OfferID)
	assert.True(t, op.Selling.Equal(decoded.Selling))
	assert.True(t, op.Buying.Equal(decoded.Buying))
	assert.Equal(t, op.Amount, decoded.Amount)
	assert.Equal(t, op.Price, decoded.Price)
}

func TestDecodeAllowTrustRejectsWrongTag(t *testing.T) {
	body := EncodeManageOffer(ManageOfferOp{Seller: accountID(1), Selling: ledger.NativeAsset(), Buying: ledger.NativeAsset()})
	_, err := DecodeAllowTrust(body)
	assert.Error(t, err)
}
