package org

import "github.com/sarchlab/nvmain/mem/dram/internal/signal"

// A Channel is an independent memory bus: a set of ranks, each holding the
// same number of banks, sharing one command pipe to the controller above.
type Channel struct {
	Ranks int
	Banks int

	banks [][]*Bank // banks[rank][bank]
}

// NewChannel builds a channel of ranks*banks Bank state machines, all
// sharing the same timing parameters.
func NewChannel(ranks, banks int, timing Timing) *Channel {
	c := &Channel{Ranks: ranks, Banks: banks}
	c.banks = make([][]*Bank, ranks)
	for r := range c.banks {
		c.banks[r] = make([]*Bank, banks)
		for b := range c.banks[r] {
			c.banks[r][b] = NewBank(timing)
		}
	}
	return c
}

// Bank returns the bank state machine at (rank, bank).
func (c *Channel) Bank(rank, bank int) *Bank {
	return c.banks[rank][bank]
}

// IsIssuable reports whether cmd can be issued against its target bank at
// the given cycle.
func (c *Channel) IsIssuable(now uint64, cmd *signal.Command) (bool, RefuseReason) {
	return c.Bank(cmd.Rank, cmd.Bank).IsIssuable(now, cmd.Kind, cmd.Row)
}

// IssueCommand applies cmd's timing effects to its target bank. The caller
// must have confirmed IsIssuable at the same cycle.
func (c *Channel) IssueCommand(now uint64, cmd *signal.Command) {
	c.Bank(cmd.Rank, cmd.Bank).IssueCommand(now, cmd.Kind, cmd.Row)
}

// Cycle advances every bank's internal bookkeeping by steps cycles.
func (c *Channel) Cycle(now uint64, steps uint64) {
	for _, rank := range c.banks {
		for _, bank := range rank {
			bank.Cycle(now, steps)
		}
	}
}

// Stats is the sum of every bank's command counters and energy components,
// the granularity PrintStats reports at.
type Stats struct {
	Reads      uint64
	Writes     uint64
	Activates  uint64
	Precharges uint64
	Refreshes  uint64

	EnergyActive     float64
	EnergyBurst      float64
	EnergyRefresh    float64
	EnergyBackground float64
}

// Stats aggregates command counters and energy across every bank.
func (c *Channel) Stats() Stats {
	var s Stats
	for _, rank := range c.banks {
		for _, bank := range rank {
			s.Reads += bank.Reads
			s.Writes += bank.Writes
			s.Activates += bank.Activates
			s.Precharges += bank.Precharges
			s.Refreshes += bank.Refreshes
			s.EnergyActive += bank.EnergyActive
			s.EnergyBurst += bank.EnergyBurst
			s.EnergyRefresh += bank.EnergyRefresh
			s.EnergyBackground += bank.EnergyBackground
		}
	}
	return s
}
