// Package org models the DRAM organisation below the controller: banks and
// the channel that groups them into ranks.
package org

import (
	"fmt"

	"github.com/sarchlab/nvmain/mem/dram/internal/signal"
)

// State is the lifecycle state of a bank.
type State int

// The bank states.
const (
	Unknown State = iota
	Open
	Closed
	PDPF // precharged, fast power-down
	PDA  // active power-down
	PDPS // precharged, slow power-down
)

// RefuseReason explains why IsIssuable refused a command.
type RefuseReason int

// The reasons IsIssuable can refuse a command.
const (
	ReasonNone RefuseReason = iota
	ReasonBankTiming
	ReasonRankTiming
	ReasonSubarrayTiming
	ReasonBankState
)

// Timing holds the device timing constants a Bank enforces.
type Timing struct {
	TRCD  uint64
	TRP   uint64
	TRAS  uint64
	TRC   uint64
	TCCD  uint64
	TRFC  uint64
	TRTP  uint64
	TCWD  uint64
	TBURST uint64
	TWR   uint64
	TWTR  uint64
	AL    uint64
	Rows  int
}

// A Bank is the smallest independently activatable DRAM unit. Only its
// owning channel mutates its state; every other component observes it
// through IsIssuable and the read-only counters.
type Bank struct {
	Timing Timing

	state   State
	openRow int

	nextActivate  uint64
	nextPrecharge uint64
	nextRead      uint64
	nextWrite     uint64
	nextRefresh   uint64
	nextPowerUp   uint64

	prechargeDueAt uint64
	prechargePending bool

	Reads      uint64
	Writes     uint64
	Activates  uint64
	Precharges uint64
	Refreshes  uint64

	EnergyActive     float64
	EnergyBurst      float64
	EnergyRefresh    float64
	EnergyBackground float64

	idleCycles uint64
}

// NewBank creates a bank in the CLOSED state with a zeroed timing history.
func NewBank(timing Timing) *Bank {
	return &Bank{
		Timing:  timing,
		state:   Closed,
		openRow: timing.Rows,
	}
}

// State returns the bank's current lifecycle state.
func (b *Bank) State() State {
	return b.state
}

// OpenRow returns the currently open row. Only meaningful when State()==Open.
func (b *Bank) OpenRow() int {
	return b.openRow
}

// IsIssuable is a pure query: can req be issued against this bank at cycle
// now? On refusal, reason explains why.
func (b *Bank) IsIssuable(now uint64, kind signal.OpKind, row int) (bool, RefuseReason) {
	switch kind {
	case signal.OpActivate:
		if b.state != Closed {
			return false, ReasonBankState
		}
		if now < b.nextActivate {
			return false, ReasonBankTiming
		}
	case signal.OpRead, signal.OpReadPrecharge:
		if b.state != Open || b.openRow != row {
			return false, ReasonBankState
		}
		if now < b.nextRead {
			return false, ReasonBankTiming
		}
	case signal.OpWrite, signal.OpWritePrecharge:
		if b.state != Open || b.openRow != row {
			return false, ReasonBankState
		}
		if now < b.nextWrite {
			return false, ReasonBankTiming
		}
	case signal.OpPrecharge, signal.OpPrechargeAll:
		if b.state != Open {
			return false, ReasonBankState
		}
		if now < b.nextPrecharge {
			return false, ReasonBankTiming
		}
	case signal.OpRefresh:
		if b.state != Closed {
			return false, ReasonBankState
		}
		if now < b.nextRefresh {
			return false, ReasonBankTiming
		}
	default:
		return true, ReasonNone
	}

	return true, ReasonNone
}

// IssueCommand applies the timing update for a command that IsIssuable has
// already approved. Callers must not call IssueCommand without first
// checking IsIssuable at the same cycle: doing so is a simulator bug. It
// panics when the bank state refuses the command (for example ACTIVATE on
// a bank that is not CLOSED); timing deadlines are not re-checked here.
func (b *Bank) IssueCommand(now uint64, kind signal.OpKind, row int) {
	if ok, reason := b.IsIssuable(now, kind, row); !ok && reason == ReasonBankState {
		panic(fmt.Sprintf("bank cannot issue %s in state %d (open row %d, row %d)",
			kind, b.state, b.openRow, row))
	}

	t := b.Timing

	switch kind {
	case signal.OpActivate:
		b.openRow = row
		b.state = Open
		b.nextRead = now + t.TRCD
		b.nextWrite = now + t.TRCD
		b.nextPrecharge = now + t.TRAS
		b.nextActivate = now + t.TRC
		b.Activates++
		b.EnergyActive++

	case signal.OpRead:
		b.nextRead = now + t.TCCD
		b.nextWrite = now + t.TCCD
		if due := now + t.TRTP; due > b.nextPrecharge {
			b.nextPrecharge = due
		}
		b.Reads++
		b.EnergyBurst++

	case signal.OpWrite:
		b.nextRead = now + t.TCCD
		b.nextWrite = now + t.TCCD
		if due := now + t.TCWD + t.TBURST + t.TWR; due > b.nextPrecharge {
			b.nextPrecharge = due
		}
		b.Writes++
		b.EnergyBurst++

	case signal.OpReadPrecharge:
		b.Reads++
		b.EnergyBurst++
		b.schedulePrecharge(now + t.AL + t.TRTP)

	case signal.OpWritePrecharge:
		b.Writes++
		b.EnergyBurst++
		b.schedulePrecharge(now + t.AL + t.TCWD + t.TBURST + t.TWR)

	case signal.OpPrecharge:
		b.schedulePrecharge(now + t.TRP)
		b.Precharges++

	case signal.OpPrechargeAll:
		b.schedulePrecharge(now + t.TRP)
		b.Precharges++

	case signal.OpRefresh:
		b.nextActivate = now + t.TRFC
		b.nextRefresh = now + t.TRFC
		b.Refreshes++
		b.EnergyRefresh++

	default:
		panic(fmt.Sprintf("bank cannot issue command %s", kind))
	}
}

// schedulePrecharge arranges for the bank to flip CLOSED once dueAt has
// elapsed, and updates nextActivate to match.
func (b *Bank) schedulePrecharge(dueAt uint64) {
	b.prechargePending = true
	b.prechargeDueAt = dueAt
	b.nextActivate = dueAt
}

// Cycle advances internal bookkeeping by steps cycles, draining any
// due precharge completion.
func (b *Bank) Cycle(now uint64, steps uint64) {
	if b.state == Open {
		b.EnergyBackground += float64(steps)
	} else {
		b.idleCycles += steps
	}

	if b.prechargePending && now >= b.prechargeDueAt {
		b.state = Closed
		b.openRow = b.Timing.Rows
		b.prechargePending = false
	}
}
