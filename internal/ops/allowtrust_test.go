package ops

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

func TestAllowTrustOnNonAuthRequiredIssuer(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	issuer := accountID(1)
	trustor := accountID(2)
	d := delta.New()
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{AccountID: issuer})))

	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)
	require.NoError(t, tx.TrustLines.StoreAdd(d, ledger.NewTrustLineFrame(ledger.TrustLineEntry{
		AccountID: trustor, Asset: usd, Limit: 1000,
	})))

	code, err := AllowTrust(tx, d, AllowTrustOp{Source: issuer, Trustor: trustor, Asset: usd, Authorize: true})
	require.NoError(t, err)
	assert.Equal(t, AllowTrustNotRequired, code)
}

func TestAllowTrustSuccess(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	issuer := accountID(1)
	trustor := accountID(2)
	d := delta.New()
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{
		AccountID: issuer, Flags: ledger.AuthRequiredFlag,
	})))

	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)
	require.NoError(t, tx.TrustLines.StoreAdd(d, ledger.NewTrustLineFrame(ledger.TrustLineEntry{
		AccountID: trustor, Asset: usd, Limit: 1000,
	})))

	code, err := AllowTrust(tx, d, AllowTrustOp{Source: issuer, Trustor: trustor, Asset: usd, Authorize: true})
	require.NoError(t, err)
	assert.Equal(t, AllowTrustSuccess, code)

	line, ok, err := tx.TrustLines.Load(ledger.TrustLineKey(trustor, usd))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, line.TrustLine().IsAuthorized())
}

func TestAllowTrustCantRevokeWithoutRevocableFlag(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	issuer := accountID(1)
	trustor := accountID(2)
	d := delta.New()
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{
		AccountID: issuer, Flags: ledger.AuthRequiredFlag,
	})))
	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)
	require.NoError(t, tx.TrustLines.StoreAdd(d, ledger.NewTrustLineFrame(ledger.TrustLineEntry{
		AccountID: trustor, Asset: usd, Limit: 1000, Flags: ledger.TrustLineAuthorizedFlag,
	})))

	code, err := AllowTrust(tx, d, AllowTrustOp{Source: issuer, Trustor: trustor, Asset: usd, Authorize: false})
	require.NoError(t, err)
	assert.Equal(t, AllowTrustCantRevoke, code)
}

func TestAllowTrustNoTrustLine(t *testing.T) {
	s := newTestStore(t)
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback()

	issuer := accountID(1)
	trustor := accountID(2)
	d := delta.New()
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{
		AccountID: issuer, Flags: ledger.AuthRequiredFlag,
	})))
	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)

	code, err := AllowTrust(tx, d, AllowTrustOp{Source: issuer, Trustor: trustor, Asset: usd, Authorize: true})
	require.NoError(t, err)
	assert.Equal(t, AllowTrustNoTrustLine, code)
}
