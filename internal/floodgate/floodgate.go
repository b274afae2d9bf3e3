// Package floodgate ports Floodgate.h's bookkeeping: which broadcast
// messages this node has already told which peers about, indexed by the
// ledger they relate to so the whole map can be purged on ledger close.
// The transport side (actually sending bytes to a peer) is out of scope
// (spec's network-transport Non-goal) — Broadcast is a caller-supplied
// interface stub a real node's overlay package would implement.
package floodgate

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stellar/go/support/log"

	"github.com/stellar/ledgerclose/internal/ledger"
)

// Broadcaster sends a previously unseen message to the node's peers. A real
// implementation lives in an overlay/peering package this core does not
// build; tests and the close pipeline can supply a no-op or recording stub.
type Broadcaster interface {
	Broadcast(msg Message)
}

// Message is one flooded payload (a transaction or an SCP envelope, in
// stellar-core's terms). Body is opaque to the gate — it never interprets
// the bytes, only tracks which Hash has been seen.
type Message struct {
	Hash      ledger.Hash
	LedgerSeq uint32
	Body      []byte
}

type record struct {
	ledgerSeq uint32
	message   Message
	told      map[string]bool
}

// Gate is the in-memory flood-tracking map. Safe for concurrent use: a node
// running with more than one peering goroutine can all call AddRecord
// without external locking, matching Floodgate's own mutex-free but
// single-apartment design (guarded here instead with an explicit mutex
// since this core does not assume a single-threaded event loop).
type Gate struct {
	mu          sync.Mutex
	records     map[ledger.Hash]*record
	logger      *log.Entry
	broadcaster Broadcaster
	mapSize     prometheus.Gauge
}

// New constructs a Gate. registerer may be nil in tests that don't care
// about metrics; namespace is the Prometheus namespace the caller's other
// gauges use (so flood_map_size shares it).
func New(registerer prometheus.Registerer, namespace string, logger *log.Entry, broadcaster Broadcaster) *Gate {
	g := &Gate{
		records:     make(map[ledger.Hash]*record),
		logger:      logger,
		broadcaster: broadcaster,
		mapSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "floodgate",
			Name:      "flood_map_size",
			Help:      "number of messages currently tracked by the floodgate",
		}),
	}
	if registerer != nil {
		registerer.MustRegister(g.mapSize)
	}
	return g
}

// AddRecord records that msg arrived from fromPeer (empty string if it
// originated locally). It returns true the first time this hash is seen —
// the caller should only Broadcast on a true return, mirroring
// Floodgate::addRecord's "inhibit re-sending to peers we heard it from"
// contract.
func (g *Gate) AddRecord(msg Message, fromPeer string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.records[msg.Hash]
	if !ok {
		r = &record{ledgerSeq: msg.LedgerSeq, message: msg, told: make(map[string]bool)}
		g.records[msg.Hash] = r
		g.mapSize.Set(float64(len(g.records)))
		if fromPeer != "" {
			r.told[fromPeer] = true
		}
		return true
	}
	if fromPeer != "" {
		r.told[fromPeer] = true
	}
	return false
}

// Broadcast hands msg to the broadcaster. It does not consult which peers
// are recorded as the message's source. A nil broadcaster is a valid
// no-op configuration (e.g. a node with overlay disabled).
func (g *Gate) Broadcast(msg Message) {
	if g.broadcaster == nil {
		return
	}
	g.broadcaster.Broadcast(msg)
}

// ClearBelow drops every record for a ledger strictly older than
// currentLedger, invoked at the end of each successful close (spec §4.8
// step 7).
func (g *Gate) ClearBelow(currentLedger uint32) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for hash, r := range g.records {
		if r.ledgerSeq < currentLedger {
			delete(g.records, hash)
		}
	}
	g.mapSize.Set(float64(len(g.records)))
	if g.logger != nil {
		g.logger.WithField("ledger_seq", currentLedger).WithField("remaining", len(g.records)).Debug("floodgate cleared")
	}
}

// Size reports how many messages are currently tracked, for tests and
// diagnostics.
func (g *Gate) Size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records)
}
