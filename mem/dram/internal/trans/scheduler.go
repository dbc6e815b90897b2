// Package trans implements FR-FCFS transaction selection and the command
// expansion that turns a selected transaction into the device command
// sequence pushed onto a bank's queue.
package trans

import (
	"github.com/sarchlab/nvmain/mem/dram/internal/cmdq"
	"github.com/sarchlab/nvmain/mem/dram/internal/signal"
)

// ClosePage is the page-management policy governing when a bank is closed
// again after a column access.
type ClosePage int

// The supported close-page policies.
const (
	ClosePageOpen       ClosePage = 0 // leave the row open
	ClosePageRelaxed     ClosePage = 1 // close only if nothing else queued wants it
	ClosePageRestricted ClosePage = 2 // always close (implicit precharge on every op)
)

// Scheduler runs FR-FCFS selection over a channel's transaction queue and
// expands the winner into device commands.
type Scheduler struct {
	State               *cmdq.SchedulerState
	Queues              *cmdq.Queues
	StarvationThreshold int
	ClosePage           ClosePage
}

// candidate is a transaction queue entry paired with its index, so the
// winner can be spliced out of the queue by value.
type candidate struct {
	idx int
	req *signal.Request
}

// SelectAndExpand tries to promote exactly one transaction from txQueue to
// the per-bank command queues, in FR-FCFS priority order. It reports
// whether it promoted one, and returns the queue with the winner removed.
func (s *Scheduler) SelectAndExpand(txQueue []*signal.Request) ([]*signal.Request, bool) {
	win, ok := s.selectStarved(txQueue)
	if !ok {
		win, ok = s.selectRowHit(txQueue)
	}
	if !ok {
		win, ok = s.selectOldestReady(txQueue)
	}
	if !ok {
		win, ok = s.selectClosedBank(txQueue)
	}
	if !ok {
		return txQueue, false
	}

	remaining := make([]*signal.Request, 0, len(txQueue)-1)
	remaining = append(remaining, txQueue[:win.idx]...)
	remaining = append(remaining, txQueue[win.idx+1:]...)

	s.expand(win.req, remaining)

	return remaining, true
}

func (s *Scheduler) eligible(req *signal.Request) bool {
	return !s.State.NeedRefresh(req.Rank, req.Bank)
}

func (s *Scheduler) selectStarved(q []*signal.Request) (candidate, bool) {
	for i, req := range q {
		if !s.eligible(req) {
			continue
		}
		r, b := req.Rank, req.Bank
		if s.State.ActivateQueued(r, b) &&
			s.State.EffectiveRow(r, b) != req.Row &&
			s.State.Starvation(r, b) >= s.StarvationThreshold &&
			s.Queues.Empty(r, b) {
			return candidate{i, req}, true
		}
	}
	return candidate{}, false
}

func (s *Scheduler) selectRowHit(q []*signal.Request) (candidate, bool) {
	for i, req := range q {
		if !s.eligible(req) {
			continue
		}
		r, b := req.Rank, req.Bank
		if s.State.ActivateQueued(r, b) &&
			s.State.EffectiveRow(r, b) == req.Row &&
			s.Queues.Empty(r, b) {
			return candidate{i, req}, true
		}
	}
	return candidate{}, false
}

func (s *Scheduler) selectOldestReady(q []*signal.Request) (candidate, bool) {
	for i, req := range q {
		if !s.eligible(req) {
			continue
		}
		r, b := req.Rank, req.Bank
		if s.State.ActivateQueued(r, b) && s.Queues.Empty(r, b) {
			return candidate{i, req}, true
		}
	}
	return candidate{}, false
}

func (s *Scheduler) selectClosedBank(q []*signal.Request) (candidate, bool) {
	for i, req := range q {
		if !s.eligible(req) {
			continue
		}
		r, b := req.Rank, req.Bank
		if !s.State.ActivateQueued(r, b) && s.Queues.Empty(r, b) {
			return candidate{i, req}, true
		}
	}
	return candidate{}, false
}

// isLastRequest decides, per the close-page policy, whether req should be
// tagged to auto-precharge once its column op completes.
func (s *Scheduler) isLastRequest(req *signal.Request, remaining []*signal.Request) bool {
	switch s.ClosePage {
	case ClosePageRestricted:
		return true
	case ClosePageRelaxed:
		for _, other := range remaining {
			if other.Rank == req.Rank && other.Bank == req.Bank && other.Row == req.Row {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func columnOp(req *signal.Request) signal.OpKind {
	if req.IsWrite {
		return signal.OpWrite
	}
	return signal.OpRead
}

func columnOpPrecharge(req *signal.Request) signal.OpKind {
	if req.IsWrite {
		return signal.OpWritePrecharge
	}
	return signal.OpReadPrecharge
}

func (s *Scheduler) expand(req *signal.Request, remaining []*signal.Request) {
	r, b, row := req.Rank, req.Bank, req.Row

	switch {
	case !s.State.ActivateQueued(r, b):
		s.Queues.Push(&signal.Command{Kind: signal.OpActivate, Rank: r, Bank: b, Row: row})
		s.pushColumnOp(req, remaining)
		if req.LastRequest {
			// The column op auto-precharges as soon as it drains, so from
			// the controller's point of view the bank ends up closed.
			s.State.MarkClosed(r, b)
		} else {
			s.State.MarkOpened(r, b, row)
		}

	case s.State.EffectiveRow(r, b) != row:
		oldRow := s.State.EffectiveRow(r, b)
		s.Queues.Push(&signal.Command{Kind: signal.OpPrecharge, Rank: r, Bank: b, Row: oldRow})
		s.Queues.Push(&signal.Command{Kind: signal.OpActivate, Rank: r, Bank: b, Row: row})
		s.Queues.Push(&signal.Command{Kind: columnOp(req), Rank: r, Bank: b, Row: row, Req: req})
		s.State.MarkOpened(r, b, row)

	default:
		req.LastRequest = s.isLastRequest(req, remaining)
		if req.LastRequest {
			s.Queues.Push(&signal.Command{Kind: columnOpPrecharge(req), Rank: r, Bank: b, Row: row, Req: req})
			s.State.MarkClosed(r, b)
		} else {
			s.Queues.Push(&signal.Command{Kind: columnOp(req), Rank: r, Bank: b, Row: row, Req: req})
		}
		s.State.RecordHit(r, b)
	}
}

// pushColumnOp handles the closed-bank case, where the column op may be
// promoted to its auto-precharge variant on the very first access.
func (s *Scheduler) pushColumnOp(req *signal.Request, remaining []*signal.Request) {
	r, b, row := req.Rank, req.Bank, req.Row
	req.LastRequest = s.isLastRequest(req, remaining)

	if req.LastRequest {
		s.Queues.Push(&signal.Command{Kind: columnOpPrecharge(req), Rank: r, Bank: b, Row: row, Req: req})
	} else {
		s.Queues.Push(&signal.Command{Kind: columnOp(req), Rank: r, Bank: b, Row: row, Req: req})
	}
}
