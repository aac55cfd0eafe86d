// Package idgen mints transaction identifiers.
//
// IDs are 63-bit snowflakes: milliseconds since Epoch (41 bits), node (10 bits)
// and a per-millisecond sequence (12 bits). A generator never returns the same
// value twice and its output never decreases, even when the wall clock steps back.
package idgen

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fastprodman/botledger/internal/domain"
)

const (
	timeBits = 41
	nodeBits = 10
	seqBits  = 12

	MaxNode = 1<<nodeBits - 1
	maxSeq  = 1<<seqBits - 1
	maxTime = 1<<timeBits - 1
)

// Epoch is the zero point of the timestamp component.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

var ErrInvalidNode = errors.New("node id out of range")

// Generator is the contract the ledger depends on.
type Generator interface {
	Next() domain.ID
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func() domain.ID

func (f GeneratorFunc) Next() domain.ID { return f() }

type Snowflake struct {
	mu     sync.Mutex
	node   uint64
	lastMs int64
	seq    uint64
	now    func() time.Time
}

var _ Generator = (*Snowflake)(nil)

func NewSnowflake(node uint16) (*Snowflake, error) {
	return newSnowflake(node, time.Now)
}

func newSnowflake(node uint16, now func() time.Time) (*Snowflake, error) {
	if node > MaxNode {
		return nil, fmt.Errorf("%w: %d > %d", ErrInvalidNode, node, MaxNode)
	}

	return &Snowflake{node: uint64(node), lastMs: -1, now: now}, nil
}

// Next returns a fresh id. It never blocks on the clock: when the sequence of
// the current millisecond is exhausted the generator moves on to the next one.
func (g *Snowflake) Next() domain.ID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().Sub(Epoch).Milliseconds()
	if ms < g.lastMs {
		ms = g.lastMs
	}

	if ms == g.lastMs {
		g.seq = (g.seq + 1) & maxSeq
		if g.seq == 0 {
			ms++
		}
	} else {
		g.seq = 0
	}

	if ms < 0 || ms > maxTime {
		panic(fmt.Sprintf("idgen: timestamp %d outside id space", ms))
	}

	g.lastMs = ms

	return domain.ID(uint64(ms)<<(nodeBits+seqBits) | g.node<<seqBits | g.seq)
}

// Parts splits an id into its components.
func Parts(id domain.ID) (at time.Time, node uint16, seq uint16) {
	v := uint64(id)
	ms := int64(v >> (nodeBits + seqBits))

	return Epoch.Add(time.Duration(ms) * time.Millisecond),
		uint16(v >> seqBits & MaxNode),
		uint16(v & maxSeq)
}
