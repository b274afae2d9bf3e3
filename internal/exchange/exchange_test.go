package exchange

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/ledgerclose/internal/delta"
	"github.com/stellar/ledgerclose/internal/ledger"
	"github.com/stellar/ledgerclose/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ledgerclose.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func accountID(b byte) ledger.AccountID {
	var id ledger.AccountID
	id[0] = b
	return id
}

func TestConvertWithOffersFullyFillsWantFromOneOffer(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	issuer := accountID(1)
	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)
	native := ledger.NativeAsset()

	seller := accountID(2)
	d := delta.New()
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: seller, Balance: 0})))
	require.NoError(t, tx.TrustLines.StoreAdd(d, ledger.NewTrustLineFrame(ledger.TrustLineEntry{
		AccountID: seller, Asset: usd, Balance: 1000, Limit: 10000, Flags: ledger.TrustLineAuthorizedFlag,
	})))
	// Seller offers to sell 500 USD at a price of 1 native per USD.
	require.NoError(t, tx.Offers.StoreAdd(d, ledger.NewOfferFrame(ledger.OfferEntry{
		SellerID: seller, OfferID: 1, Selling: usd, Buying: native, Amount: 500, Price: ledger.Price{N: 1, D: 1},
	})))

	ex := New(tx, d, nil)
	sentA, receivedB, result, err := ex.ConvertWithOffers(native, 1000, usd, 300, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultOK, result)
	assert.Equal(t, int64(300), sentA)
	assert.Equal(t, int64(300), receivedB)

	sellerAccount, ok, err := tx.Accounts.Load(ledger.AccountKey(seller))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(300), sellerAccount.Account().Balance, "seller is credited the native asset paid in")

	sellerLine, ok, err := tx.TrustLines.Load(ledger.TrustLineKey(seller, usd))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(700), sellerLine.TrustLine().Balance, "seller is debited the USD sold")

	remainingOffer, ok, err := tx.Offers.Load(ledger.OfferKey(seller, 1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(200), remainingOffer.Offer().Amount)

	require.Len(t, ex.OfferTrail(), 1)
	assert.Equal(t, uint64(1), ex.OfferTrail()[0].OfferID)
	assert.False(t, ex.OfferTrail()[0].FullyConsumed)
}

func TestConvertWithOffersReturnsPartialWhenBookRunsDry(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	issuer := accountID(1)
	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)
	native := ledger.NativeAsset()

	d := delta.New()
	ex := New(tx, d, nil)
	sentA, receivedB, result, err := ex.ConvertWithOffers(native, 1000, usd, 300, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultPartial, result)
	assert.Equal(t, int64(0), sentA)
	assert.Equal(t, int64(0), receivedB)
	assert.Empty(t, ex.OfferTrail())
}

func TestConvertWithOffersFullyConsumesOfferAndDeletesIt(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	issuer := accountID(1)
	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)
	native := ledger.NativeAsset()
	seller := accountID(2)

	d := delta.New()
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: seller})))
	require.NoError(t, tx.TrustLines.StoreAdd(d, ledger.NewTrustLineFrame(ledger.TrustLineEntry{
		AccountID: seller, Asset: usd, Balance: 100, Limit: 1000, Flags: ledger.TrustLineAuthorizedFlag,
	})))
	require.NoError(t, tx.Offers.StoreAdd(d, ledger.NewOfferFrame(ledger.OfferEntry{
		SellerID: seller, OfferID: 7, Selling: usd, Buying: native, Amount: 50, Price: ledger.Price{N: 1, D: 1},
	})))

	ex := New(tx, d, nil)
	_, receivedB, result, err := ex.ConvertWithOffers(native, 1000, usd, 100, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultPartial, result, "only 50 of the 100 wanted is available")
	assert.Equal(t, int64(50), receivedB)

	_, ok, err := tx.Offers.Load(ledger.OfferKey(seller, 7))
	require.NoError(t, err)
	assert.False(t, ok, "fully consumed offer must be removed from the book")

	require.Len(t, ex.OfferTrail(), 1)
	assert.True(t, ex.OfferTrail()[0].FullyConsumed)
}

func TestConvertWithOffersPullsOfferItsOwnerCannotHonor(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	issuer := accountID(1)
	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)
	native := ledger.NativeAsset()

	unhonorable := accountID(2)
	honorable := accountID(3)

	d := delta.New()
	// unhonorable has no USD trustline at all -> cannot honor its own offer.
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: unhonorable})))
	require.NoError(t, tx.Offers.StoreAdd(d, ledger.NewOfferFrame(ledger.OfferEntry{
		SellerID: unhonorable, OfferID: 1, Selling: usd, Buying: native, Amount: 100, Price: ledger.Price{N: 1, D: 1},
	})))

	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: honorable})))
	require.NoError(t, tx.TrustLines.StoreAdd(d, ledger.NewTrustLineFrame(ledger.TrustLineEntry{
		AccountID: honorable, Asset: usd, Balance: 100, Limit: 1000, Flags: ledger.TrustLineAuthorizedFlag,
	})))
	require.NoError(t, tx.Offers.StoreAdd(d, ledger.NewOfferFrame(ledger.OfferEntry{
		SellerID: honorable, OfferID: 2, Selling: usd, Buying: native, Amount: 100, Price: ledger.Price{N: 2, D: 1},
	})))

	ex := New(tx, d, nil)
	_, receivedB, result, err := ex.ConvertWithOffers(native, 1000, usd, 50, nil)
	require.NoError(t, err)
	assert.Equal(t, ResultOK, result)
	assert.Equal(t, int64(50), receivedB)

	_, ok, err := tx.Offers.Load(ledger.OfferKey(unhonorable, 1))
	require.NoError(t, err)
	assert.False(t, ok, "the unhonorable offer (best price) must have been pulled")

	require.Len(t, ex.OfferTrail(), 1)
	assert.Equal(t, uint64(2), ex.OfferTrail()[0].OfferID)
}

func TestConvertWithOffersFilterStop(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	issuer := accountID(1)
	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)
	native := ledger.NativeAsset()
	seller := accountID(2)

	d := delta.New()
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: seller})))
	require.NoError(t, tx.TrustLines.StoreAdd(d, ledger.NewTrustLineFrame(ledger.TrustLineEntry{
		AccountID: seller, Asset: usd, Balance: 500, Limit: 1000, Flags: ledger.TrustLineAuthorizedFlag,
	})))
	require.NoError(t, tx.Offers.StoreAdd(d, ledger.NewOfferFrame(ledger.OfferEntry{
		SellerID: seller, OfferID: 1, Selling: usd, Buying: native, Amount: 100, Price: ledger.Price{N: 1, D: 1},
	})))

	ex := New(tx, d, nil)
	_, _, result, err := ex.ConvertWithOffers(native, 1000, usd, 50, func(ledger.OfferEntry) FilterDecision {
		return FilterStop
	})
	require.NoError(t, err)
	assert.Equal(t, ResultFilterStop, result)
	assert.Empty(t, ex.OfferTrail())
}
