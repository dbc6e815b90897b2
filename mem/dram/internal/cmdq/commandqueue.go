// Package cmdq holds the per-bank command queues and the round-robin
// issuance loop that drains one of them into the channel each cycle.
package cmdq

import (
	"fmt"

	"github.com/sarchlab/nvmain/mem/dram/internal/org"
	"github.com/sarchlab/nvmain/mem/dram/internal/signal"
)

// DeadlockWatchdogCycles is the number of cycles a queue head may wait
// before CycleCommandQueues treats it as a deadlock and aborts.
const DeadlockWatchdogCycles = 1000000

// Scheme selects how CycleCommandQueues rotates across (rank, bank) pairs.
type Scheme int

// The supported scheduling schemes.
const (
	SchemeFixed Scheme = iota
	SchemeRankFirst
	SchemeBankFirst
)

// Queues owns one FIFO command queue per (rank, bank) and the cursor used
// to fairly rotate issuance across them.
type Queues struct {
	Scheme Scheme

	ranks int
	banks int

	queue [][][]*signal.Command // queue[rank][bank] FIFO

	curRank int
	curBank int

	waitSince map[*signal.Command]uint64
}

// NewQueues creates an empty queue set for the given topology.
func NewQueues(ranks, banks int, scheme Scheme) *Queues {
	q := &Queues{
		Scheme:    scheme,
		ranks:     ranks,
		banks:     banks,
		waitSince: make(map[*signal.Command]uint64),
	}
	q.queue = make([][][]*signal.Command, ranks)
	for r := range q.queue {
		q.queue[r] = make([][]*signal.Command, banks)
	}
	return q
}

// Push appends a command to the tail of its target bank's queue.
func (q *Queues) Push(cmd *signal.Command) {
	q.queue[cmd.Rank][cmd.Bank] = append(q.queue[cmd.Rank][cmd.Bank], cmd)
}

// Empty reports whether the (rank, bank) queue has no pending commands.
func (q *Queues) Empty(rank, bank int) bool {
	return len(q.queue[rank][bank]) == 0
}

// Head returns the command at the front of the (rank, bank) queue, or nil.
func (q *Queues) Head(rank, bank int) *signal.Command {
	fifo := q.queue[rank][bank]
	if len(fifo) == 0 {
		return nil
	}
	return fifo[0]
}

func (q *Queues) pop(rank, bank int) {
	fifo := q.queue[rank][bank]
	delete(q.waitSince, fifo[0])
	q.queue[rank][bank] = fifo[1:]
}

// CycleCommandQueues scans (rank, bank) pairs starting at the internal
// cursor and issues the first ready head it finds, advancing the cursor
// per Scheme. It issues at most one command per call. It panics (a fatal,
// diagnosable abort) if a head has waited past DeadlockWatchdogCycles.
func (q *Queues) CycleCommandQueues(now uint64, channel *org.Channel) *signal.Command {
	r, b := q.curRank, q.curBank

	for i := 0; i < q.ranks*q.banks; i++ {
		head := q.Head(r, b)
		if head != nil {
			if _, tracked := q.waitSince[head]; !tracked {
				q.waitSince[head] = now
			}

			if waited := now - q.waitSince[head]; waited > DeadlockWatchdogCycles {
				panic(fmt.Sprintf(
					"scheduling deadlock: command %s stalled on rank %d bank %d "+
						"since cycle %d (now %d)",
					head.Kind, r, b, q.waitSince[head], now))
			}

			if ok, _ := channel.IsIssuable(now, head); ok {
				channel.IssueCommand(now, head)
				q.pop(r, b)
				head.IssueCycle = now
				q.curRank, q.curBank = q.nextCursor(r, b)
				return head
			}
		}

		r, b = q.scanNext(r, b)
	}

	return nil
}

// scanNext visits every (rank, bank) pair once per call regardless of
// Scheme; only the persisted cursor after a successful issue depends on
// Scheme.
func (q *Queues) scanNext(r, b int) (int, int) {
	b++
	if b >= q.banks {
		b = 0
		r++
		if r >= q.ranks {
			r = 0
		}
	}
	return r, b
}

// nextCursor computes where the next call should resume scanning from,
// after issuing the command at (r, b).
func (q *Queues) nextCursor(r, b int) (int, int) {
	switch q.Scheme {
	case SchemeFixed:
		return 0, 0
	case SchemeBankFirst:
		b++
		if b >= q.banks {
			b = 0
			r++
			if r >= q.ranks {
				r = 0
			}
		}
		return r, b
	default: // SchemeRankFirst
		r++
		if r >= q.ranks {
			r = 0
			b++
			if b >= q.banks {
				b = 0
			}
		}
		return r, b
	}
}
