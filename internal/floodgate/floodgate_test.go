package floodgate

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/ledgerclose/internal/ledger"
)

type recordingBroadcaster struct {
	sent []Message
}

func (r *recordingBroadcaster) Broadcast(msg Message) {
	r.sent = append(r.sent, msg)
}

func hashFrom(b byte) ledger.Hash {
	var h ledger.Hash
	h[0] = b
	return h
}

func TestAddRecordFirstSeenReturnsTrue(t *testing.T) {
	g := New(prometheus.NewRegistry(), "ledgerclose_test", nil, nil)
	isNew := g.AddRecord(Message{Hash: hashFrom(1), LedgerSeq: 5}, "peerA")
	assert.True(t, isNew)
	assert.Equal(t, 1, g.Size())
}

func TestAddRecordDuplicateReturnsFalse(t *testing.T) {
	g := New(prometheus.NewRegistry(), "ledgerclose_test", nil, nil)
	require.True(t, g.AddRecord(Message{Hash: hashFrom(1), LedgerSeq: 5}, "peerA"))
	assert.False(t, g.AddRecord(Message{Hash: hashFrom(1), LedgerSeq: 5}, "peerB"))
	assert.Equal(t, 1, g.Size())
}

func TestClearBelowPurgesOldLedgersOnly(t *testing.T) {
	g := New(prometheus.NewRegistry(), "ledgerclose_test", nil, nil)
	g.AddRecord(Message{Hash: hashFrom(1), LedgerSeq: 5}, "")
	g.AddRecord(Message{Hash: hashFrom(2), LedgerSeq: 10}, "")

	g.ClearBelow(10)
	require.Equal(t, 1, g.Size())

	g.mu.Lock()
	_, kept := g.records[hashFrom(2)]
	g.mu.Unlock()
	assert.True(t, kept)
}

func TestBroadcastDispatchesToBroadcaster(t *testing.T) {
	b := &recordingBroadcaster{}
	g := New(prometheus.NewRegistry(), "ledgerclose_test", nil, b)
	msg := Message{Hash: hashFrom(3), LedgerSeq: 1}
	g.AddRecord(msg, "")
	g.Broadcast(msg)
	require.Len(t, b.sent, 1)
	assert.Equal(t, msg.Hash, b.sent[0].Hash)
}

func TestBroadcastWithNilBroadcasterIsNoop(t *testing.T) {
	g := New(prometheus.NewRegistry(), "ledgerclose_test", nil, nil)
	assert.NotPanics(t, func() {
		g.Broadcast(Message{Hash: hashFrom(4)})
	})
}
