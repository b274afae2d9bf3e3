package closemgr

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/ledgerclose/internal/delta"
	"github.com/stellar/ledgerclose/internal/ledger"
	"github.com/stellar/ledgerclose/internal/ops"
	"github.com/stellar/ledgerclose/internal/store"
	"github.com/stellar/ledgerclose/internal/txset"
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

func hashFrom(b byte) ledger.Hash {
	var h ledger.Hash
	h[0] = b
	return h
}

type sequentialIDs struct{ next uint64 }

func (s *sequentialIDs) NextOfferID() uint64 {
	s.next++
	return s.next
}

func seedAccount(t *testing.T, s *store.Store, id ledger.AccountID, seqNum int64, flags uint32) {
	t.Helper()
	tx, err := s.Begin(context.Background())
	require.NoError(t, err)
	d := delta.New()
	require.NoError(t, tx.Accounts.StoreAdd(d, ledger.NewAccountFrame(ledger.AccountEntry{
		AccountID: id, SeqNum: seqNum, Flags: flags,
	})))
	require.NoError(t, tx.Commit())
}

func TestCloseLedgerGenesisAppliesOperationAndPersistsHeader(t *testing.T) {
	s := newTestStore(t)
	issuer := accountID(1)
	trustor := accountID(2)
	seedAccount(t, s, issuer, 5, ledger.AuthRequiredFlag)

	txSetupTx, err := s.Begin(context.Background())
	require.NoError(t, err)
	d := delta.New()
	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)
	require.NoError(t, txSetupTx.TrustLines.StoreAdd(d, ledger.NewTrustLineFrame(ledger.TrustLineEntry{
		AccountID: trustor, Asset: usd, Limit: 1000,
	})))
	require.NoError(t, txSetupTx.Commit())

	mgr := New(s, nil, nil, nil, &sequentialIDs{})

	frame := txset.New(ledger.Hash{})
	frame.Add(txset.Transaction{
		SourceAccount: issuer,
		SeqNum:        6,
		Operations: []txset.Operation{
			{Body: ops.EncodeAllowTrust(ops.AllowTrustOp{Source: issuer, Trustor: trustor, Asset: usd, Authorize: true})},
		},
		Hash: hashFrom(1),
	})

	header, err := mgr.CloseLedger(context.Background(), CloseData{
		LedgerSeq:      1,
		TxSet:          frame,
		ConsensusValue: ConsensusValue{CloseTime: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), header.LedgerSeq)
	assert.Equal(t, int64(100), header.CloseTime)
	assert.NotEqual(t, ledger.Hash{}, header.Hash())

	verifyTx, err := s.Begin(context.Background())
	require.NoError(t, err)
	line, ok, err := verifyTx.TrustLines.Load(ledger.TrustLineKey(trustor, usd))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, line.TrustLine().IsAuthorized())
	require.NoError(t, verifyTx.Rollback())

	_, _, exists, err := func() (ledger.Header, ledger.Hash, bool, error) {
		tx, err := s.Begin(context.Background())
		require.NoError(t, err)
		defer tx.Rollback()
		return tx.Headers.Latest()
	}()
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCloseLedgerRejectsWrongPreviousHash(t *testing.T) {
	s := newTestStore(t)
	mgr := New(s, nil, nil, nil, &sequentialIDs{})

	frame := txset.New(hashFrom(9))
	_, err := mgr.CloseLedger(context.Background(), CloseData{LedgerSeq: 1, TxSet: frame})
	assert.ErrorIs(t, err, ErrPreviousLedgerMismatch)
}

func TestCloseLedgerRejectsOutOfOrderSequence(t *testing.T) {
	s := newTestStore(t)
	mgr := New(s, nil, nil, nil, &sequentialIDs{})

	first := txset.New(ledger.Hash{})
	header1, err := mgr.CloseLedger(context.Background(), CloseData{LedgerSeq: 1, TxSet: first})
	require.NoError(t, err)

	second := txset.New(header1.Hash())
	_, err = mgr.CloseLedger(context.Background(), CloseData{LedgerSeq: 3, TxSet: second})
	assert.ErrorIs(t, err, ErrOutOfOrderLedger)
}

func TestCloseLedgerFailedOperationRollsBackWholeTransaction(t *testing.T) {
	s := newTestStore(t)
	issuer := accountID(1)
	trustor := accountID(2)
	seedAccount(t, s, issuer, 5, ledger.AuthRequiredFlag)
	// No trustline exists, so the operation must fail with NO_TRUST_LINE.

	usd, err := ledger.NewCreditAsset("USD", issuer)
	require.NoError(t, err)

	mgr := New(s, nil, nil, nil, &sequentialIDs{})
	frame := txset.New(ledger.Hash{})
	frame.Add(txset.Transaction{
		SourceAccount: issuer,
		SeqNum:        6,
		Operations: []txset.Operation{
			{Body: ops.EncodeAllowTrust(ops.AllowTrustOp{Source: issuer, Trustor: trustor, Asset: usd, Authorize: true})},
		},
		Hash: hashFrom(1),
	})

	header, err := mgr.CloseLedger(context.Background(), CloseData{LedgerSeq: 1, TxSet: frame})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), header.LedgerSeq)

	verifyTx, err := s.Begin(context.Background())
	require.NoError(t, err)
	defer verifyTx.Rollback()
	exists, err := verifyTx.TrustLines.Exists(trustor, usd)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCloseLedgerAppliesUpgrade(t *testing.T) {
	s := newTestStore(t)
	mgr := New(s, nil, nil, nil, &sequentialIDs{})

	frame := txset.New(ledger.Hash{})
	header, err := mgr.CloseLedger(context.Background(), CloseData{
		LedgerSeq: 1,
		TxSet:     frame,
		ConsensusValue: ConsensusValue{
			CloseTime: 50,
			Upgrades:  []Upgrade{{Type: UpgradeBaseFee, NewBaseFee: 500}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(500), header.BaseFee)
}
