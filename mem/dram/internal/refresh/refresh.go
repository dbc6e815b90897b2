// Package refresh implements the distributed, staggered refresh engine: one
// countdown per (rank, bank-group) pair that periodically forces a REFRESH
// (or a PRECHARGE_ALL fallback) onto the owning channel.
package refresh

import (
	"github.com/sarchlab/nvmain/mem/dram/internal/cmdq"
	"github.com/sarchlab/nvmain/mem/dram/internal/org"
	"github.com/sarchlab/nvmain/mem/dram/internal/signal"
)

// Config holds the refresh engine's static parameters.
type Config struct {
	UseRefresh              bool
	Ranks                   int
	Banks                   int
	BanksPerRefresh         int
	Rows                    int
	RefreshRows             int
	TRFI                    uint64
	DelayedRefreshThreshold int
}

// pulse tracks the next cycle at which the timer for one (rank, group)
// pair fires.
type pulse struct {
	rank, group int
	dueAt       uint64
}

// Engine is the refresh scheduler for one channel.
type Engine struct {
	cfg Config

	numGroups int
	tREFI     uint64

	delayedRefreshCounter [][]int // [rank][group]
	pulses                []*pulse

	nextRefreshRank int
	nextRefreshBank int
}

// NewEngine builds a refresh engine. If cfg.UseRefresh is false, HandleRefresh
// is a permanent no-op.
func NewEngine(cfg Config, startCycle uint64) *Engine {
	e := &Engine{cfg: cfg}
	if !cfg.UseRefresh {
		return e
	}

	e.numGroups = cfg.Banks / cfg.BanksPerRefresh
	e.tREFI = cfg.TRFI / uint64(cfg.Rows/cfg.RefreshRows)

	e.delayedRefreshCounter = make([][]int, cfg.Ranks)
	for r := range e.delayedRefreshCounter {
		e.delayedRefreshCounter[r] = make([]int, e.numGroups)
	}

	stride := e.tREFI / uint64(cfg.Ranks*e.numGroups)
	for r := 0; r < cfg.Ranks; r++ {
		for g := 0; g < e.numGroups; g++ {
			offset := uint64(r*e.numGroups+g) * stride
			e.pulses = append(e.pulses, &pulse{
				rank:  r,
				group: g,
				dueAt: startCycle + e.tREFI + offset,
			})
		}
	}

	return e
}

// groupOf maps a bank index to the bank-group it belongs to.
func (e *Engine) groupOf(bank int) int {
	return bank / e.cfg.BanksPerRefresh
}

// bankRange returns the [first, last) bank indices in group g.
func (e *Engine) bankRange(g int) (int, int) {
	first := g * e.cfg.BanksPerRefresh
	return first, first + e.cfg.BanksPerRefresh
}

// NeedRefresh reports whether the bank-group containing bank has crossed
// the delayed-refresh threshold.
func (e *Engine) NeedRefresh(rank, bank int) bool {
	if !e.cfg.UseRefresh {
		return false
	}
	return e.delayedRefreshCounter[rank][e.groupOf(bank)] >= e.cfg.DelayedRefreshThreshold
}

// ProcessRefreshPulse is called once a scheduled pulse for (rank, group)
// fires: it increments the delay counter, flags the group's banks once the
// threshold is reached, and reschedules the pulse.
func (e *Engine) ProcessRefreshPulse(p *pulse, now uint64, state *cmdq.SchedulerState) {
	e.delayedRefreshCounter[p.rank][p.group]++

	if e.delayedRefreshCounter[p.rank][p.group] >= e.cfg.DelayedRefreshThreshold {
		first, last := e.bankRange(p.group)
		for b := first; b < last; b++ {
			state.SetNeedRefresh(p.rank, b, true)
		}
	}

	p.dueAt = now + e.tREFI
}

// Tick fires any pulses due at now, in ascending (rank, group) order.
func (e *Engine) Tick(now uint64, state *cmdq.SchedulerState) {
	if !e.cfg.UseRefresh {
		return
	}
	for _, p := range e.pulses {
		if now >= p.dueAt {
			e.ProcessRefreshPulse(p, now, state)
		}
	}
}

// HandleRefresh walks (rank, group) pairs starting at the internal cursor.
// For each group that needs refresh and has every bank queue empty, it
// tries to issue a REFRESH; if the head bank refuses, it enqueues
// PRECHARGE_ALL against every open, idle bank in the group and moves on to
// the next qualifying pair for the rest of this cycle's scan. A refused
// group stays flagged and is scanned again on every later call. The
// persisted cursor moves only when a REFRESH issues, and then by one group
// from where it stood, whichever group issued. It issues at most one
// refresh per call and reports whether it did.
func (e *Engine) HandleRefresh(
	now uint64,
	channel *org.Channel,
	queues *cmdq.Queues,
	state *cmdq.SchedulerState,
) bool {
	if !e.cfg.UseRefresh {
		return false
	}

	r, g := e.nextRefreshRank, e.groupOf(e.nextRefreshBank)

	for i := 0; i < e.cfg.Ranks*e.numGroups; i++ {
		if e.groupQualifies(r, g, queues) {
			first, _ := e.bankRange(g)
			candidate := &signal.Command{Kind: signal.OpRefresh, Rank: r, Bank: first}

			if ok, _ := channel.IsIssuable(now, candidate); ok {
				channel.IssueCommand(now, candidate)
				e.delayedRefreshCounter[r][g]--
				if e.delayedRefreshCounter[r][g] < e.cfg.DelayedRefreshThreshold {
					first, last := e.bankRange(g)
					for b := first; b < last; b++ {
						state.SetNeedRefresh(r, b, false)
					}
				}
				e.advance()
				return true
			}

			e.forcePrechargeGroup(r, g, channel, queues, state)
			r, g = e.advancePair(r, g)
			continue
		}

		r, g = e.advancePair(r, g)
	}

	return false
}

func (e *Engine) groupQualifies(rank, group int, queues *cmdq.Queues) bool {
	if e.delayedRefreshCounter[rank][group] < e.cfg.DelayedRefreshThreshold {
		return false
	}
	first, last := e.bankRange(group)
	for b := first; b < last; b++ {
		if !queues.Empty(rank, b) {
			return false
		}
	}
	return true
}

func (e *Engine) forcePrechargeGroup(
	rank, group int,
	channel *org.Channel,
	queues *cmdq.Queues,
	state *cmdq.SchedulerState,
) {
	first, last := e.bankRange(group)
	for b := first; b < last; b++ {
		bank := channel.Bank(rank, b)
		if bank.State() == org.Open {
			queues.Push(&signal.Command{Kind: signal.OpPrechargeAll, Rank: rank, Bank: b, Row: bank.OpenRow()})
			state.MarkClosed(rank, b)
		}
	}
}

func (e *Engine) advance() {
	e.nextRefreshBank += e.cfg.BanksPerRefresh
	if e.nextRefreshBank >= e.cfg.Banks {
		e.nextRefreshBank = 0
		e.nextRefreshRank++
		if e.nextRefreshRank >= e.cfg.Ranks {
			e.nextRefreshRank = 0
		}
	}
}

func (e *Engine) advancePair(r, g int) (int, int) {
	g++
	if g >= e.numGroups {
		g = 0
		r++
		if r >= e.cfg.Ranks {
			r = 0
		}
	}
	return r, g
}
