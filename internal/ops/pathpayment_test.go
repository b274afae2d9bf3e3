package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/ledgerclose/internal/delta"
	"github.com/stellar/ledgerclose/internal/ledger"
)

func TestPathPaymentWithoutOffersTooFewOffers(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	issuer := accountID(1)
	source := accountID(2)
	destination := accountID(3)
	d := delta.New()
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: issuer})))
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: source, Balance: 1000})))
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: destination})))
	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)
	require.NoError(t, tx.TrustLines.StoreAdd(d, ledger.NewTrustLineFrame(ledger.TrustLineEntry{
		AccountID: destination, Asset: usd, Limit: 10000, Flags: ledger.TrustLineAuthorizedFlag,
	})))

	result, err := PathPayment(tx, d, nil, PathPaymentOp{
		Source: source, Destination: destination,
		SendAsset: ledger.NativeAsset(), SendMax: 50,
		DestAsset: usd, DestAmount: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, PathPaymentTooFewOffers, result.Code)
}

func TestPathPaymentCrossingOfferSucceeds(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	issuer := accountID(1)
	source := accountID(2)
	destination := accountID(3)
	seller := accountID(4)

	d := delta.New()
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: issuer})))
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: source, Balance: 1000})))
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: destination})))
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: seller})))

	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)
	require.NoError(t, tx.TrustLines.StoreAdd(d, ledger.NewTrustLineFrame(ledger.TrustLineEntry{
		AccountID: destination, Asset: usd, Limit: 10000, Flags: ledger.TrustLineAuthorizedFlag,
	})))
	require.NoError(t, tx.TrustLines.StoreAdd(d, ledger.NewTrustLineFrame(ledger.TrustLineEntry{
		AccountID: seller, Asset: usd, Balance: 100, Limit: 1000, Flags: ledger.TrustLineAuthorizedFlag,
	})))
	require.NoError(t, tx.Offers.StoreAdd(d, ledger.NewOfferFrame(ledger.OfferEntry{
		SellerID: seller, OfferID: 1, Selling: usd, Buying: ledger.NativeAsset(), Amount: 100, Price: ledger.Price{N: 5, D: 1},
	})))

	result, err := PathPayment(tx, d, nil, PathPaymentOp{
		Source: source, Destination: destination,
		SendAsset: ledger.NativeAsset(), SendMax: 300,
		DestAsset: usd, DestAmount: 50,
	})
	require.NoError(t, err)
	require.Equal(t, PathPaymentSuccess, result.Code)
	assert.Equal(t, int64(250), result.SendAmount)

	destLine, ok, err := tx.TrustLines.Load(ledger.TrustLineKey(destination, usd))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(50), destLine.TrustLine().Balance)

	remainingOffer, ok, err := tx.Offers.Load(ledger.OfferKey(seller, 1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(50), remainingOffer.Offer().Amount)

	require.Len(t, result.Trail, 1)
	assert.Equal(t, uint64(1), result.Trail[0].OfferID)
}

func TestPathPaymentOverSendMax(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	issuer := accountID(1)
	source := accountID(2)
	destination := accountID(3)
	seller := accountID(4)

	d := delta.New()
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: issuer})))
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: source, Balance: 1000})))
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: destination})))
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: seller})))

	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)
	require.NoError(t, tx.TrustLines.StoreAdd(d, ledger.NewTrustLineFrame(ledger.TrustLineEntry{
		AccountID: destination, Asset: usd, Limit: 10000, Flags: ledger.TrustLineAuthorizedFlag,
	})))
	require.NoError(t, tx.TrustLines.StoreAdd(d, ledger.NewTrustLineFrame(ledger.TrustLineEntry{
		AccountID: seller, Asset: usd, Balance: 100, Limit: 1000, Flags: ledger.TrustLineAuthorizedFlag,
	})))
	require.NoError(t, tx.Offers.StoreAdd(d, ledger.NewOfferFrame(ledger.OfferEntry{
		SellerID: seller, OfferID: 1, Selling: usd, Buying: ledger.NativeAsset(), Amount: 100, Price: ledger.Price{N: 5, D: 1},
	})))

	result, err := PathPayment(tx, d, nil, PathPaymentOp{
		Source: source, Destination: destination,
		SendAsset: ledger.NativeAsset(), SendMax: 100,
		DestAsset: usd, DestAmount: 50,
	})
	require.NoError(t, err)
	assert.Equal(t, PathPaymentOverSendMax, result.Code)
}
