// Package dram implements the memory controller and channel demultiplexer
// described by NVMain's timing core: FR-FCFS scheduling, staggered
// refresh, and per-bank timing enforcement sitting behind a mem.ReadReq /
// mem.WriteReq protocol port.
package dram

import (
	"github.com/sarchlab/nvmain/mem/dram/internal/addressmapping"
	"github.com/sarchlab/nvmain/mem/dram/internal/cmdq"
	"github.com/sarchlab/nvmain/mem/dram/internal/org"
	"github.com/sarchlab/nvmain/mem/dram/internal/refresh"
	"github.com/sarchlab/nvmain/mem/dram/internal/signal"
	"github.com/sarchlab/nvmain/mem/dram/internal/trans"
	"github.com/sarchlab/nvmain/mem/mem"
	"github.com/sarchlab/nvmain/memory"
	"github.com/sarchlab/nvmain/sim"
	"github.com/sarchlab/nvmain/tracing"
)

// pendingCompletion tracks a request whose column command has issued and
// is waiting for its data-ready or write-done cycle to arrive.
type pendingCompletion struct {
	req        *signal.Request
	kind       signal.OpKind
	issuedAt   uint64
	completeAt uint64
}

// Comp is a memory controller for a single channel: it owns the
// transaction queue, the FR-FCFS scheduler, the per-bank command queues,
// the refresh engine, and the channel of banks those commands are issued
// against.
type Comp struct {
	*sim.TickingComponent

	TopPort sim.Port

	Storage    *memory.Storage
	Translator *addressmapping.Translator

	channel   *org.Channel
	queues    *cmdq.Queues
	state     *cmdq.SchedulerState
	scheduler *trans.Scheduler
	refresher *refresh.Engine

	queueSize int
	txQueue   []*signal.Request

	pending []*pendingCompletion

	timing org.Timing

	recorder TaskRecorder

	currentCycle uint64
	cycleLimit   uint64
	limited      bool
}

// SetTaskRecorder plugs a hook bus into the controller: every completed
// column command that carries a caller-visible request is reported to it as
// one tracing.Task.
func (c *Comp) SetTaskRecorder(r TaskRecorder) {
	c.recorder = r
}

// SetCycleLimit bounds how many cycles the controller will tick before its
// Tick starts reporting no progress, letting a driver terminate the
// simulation.
func (c *Comp) SetCycleLimit(n uint64) {
	c.cycleLimit = n
	c.limited = true
}

// Stats reports command counters and energy accumulated across every bank
// in this channel, for PrintStats-style reporting.
func (c *Comp) Stats() org.Stats {
	return c.channel.Stats()
}

// Tick runs one cycle of the controller pipeline: complete finished
// requests, advance bank bookkeeping, run refresh, issue a command, expand
// a newly-selected transaction, and admit a new transaction from the port.
// Until a cycle limit set by SetCycleLimit is reached it reports progress
// every cycle, regardless of traffic, so that the refresh engine keeps
// firing even on an otherwise idle channel; from then on it returns false
// without doing any work.
func (c *Comp) Tick() bool {
	if c.limited && c.currentCycle >= c.cycleLimit {
		return false
	}

	c.completeFinished()
	c.channel.Cycle(c.currentCycle, 1)
	c.refresher.Tick(c.currentCycle, c.state)

	if !c.refresher.HandleRefresh(c.currentCycle, c.channel, c.queues, c.state) {
		if cmd := c.queues.CycleCommandQueues(c.currentCycle, c.channel); cmd != nil {
			c.onCommandIssued(cmd)
		}
	}

	if remaining, ok := c.scheduler.SelectAndExpand(c.txQueue); ok {
		c.txQueue = remaining
	}

	c.admit()

	c.currentCycle++

	return true
}

// onCommandIssued records the completion deadline for column commands that
// carry a caller-visible request. A write's data is committed to Storage
// here, at issue, so that a read issued after it observes the data even
// when the read completes first.
func (c *Comp) onCommandIssued(cmd *signal.Command) {
	if cmd.Req == nil {
		return
	}

	req := cmd.Req
	req.IssueCycle = cmd.IssueCycle
	req.Status = signal.StatusInProgress

	var latency uint64
	if cmd.Kind.IsRead() {
		latency = c.timing.AL + c.timing.TBURST
	} else {
		latency = c.timing.TCWD + c.timing.TBURST
		if err := c.Storage.Write(req.PhysAddr, req.Data); err != nil {
			panic(err)
		}
	}

	c.pending = append(c.pending, &pendingCompletion{
		req:        req,
		kind:       cmd.Kind,
		issuedAt:   cmd.IssueCycle,
		completeAt: cmd.IssueCycle + latency,
	})
}

// recordTask reports one completed column command to the hook bus, when one
// is plugged in.
func (c *Comp) recordTask(p *pendingCompletion) {
	if c.recorder == nil {
		return
	}

	period := c.Freq.Period()
	c.recorder.Write(tracing.Task{
		ID:        p.req.ID,
		Kind:      p.kind.String(),
		Where:     c.Name(),
		StartTime: period * sim.VTimeInSec(p.issuedAt),
		EndTime:   period * sim.VTimeInSec(p.completeAt),
	})
}

// completeFinished responds to at most one request per cycle whose
// completion deadline has arrived and whose response the port accepted.
func (c *Comp) completeFinished() bool {
	for i, p := range c.pending {
		if c.currentCycle < p.completeAt {
			continue
		}

		if c.respond(p.req) {
			c.recordTask(p)
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}

		return false
	}

	return false
}

func (c *Comp) respond(req *signal.Request) bool {
	req.CompletionCycle = c.currentCycle
	req.Status = signal.StatusCompleted

	if req.IsWrite {
		return c.respondWrite(req)
	}
	return c.respondRead(req)
}

func (c *Comp) respondRead(req *signal.Request) bool {
	orig := req.Tag.(*mem.ReadReq)

	data, err := c.Storage.Read(req.PhysAddr, orig.AccessByteSize)
	if err != nil {
		panic(err)
	}

	rsp := mem.DataReadyRspBuilder{}.
		WithSrc(c.TopPort.AsRemote()).
		WithDst(orig.Src).
		WithRspTo(orig.ID).
		WithData(data).
		Build()

	return c.TopPort.Send(rsp) == nil
}

func (c *Comp) respondWrite(req *signal.Request) bool {
	orig := req.Tag.(*mem.WriteReq)

	rsp := mem.WriteDoneRspBuilder{}.
		WithSrc(c.TopPort.AsRemote()).
		WithDst(orig.Src).
		WithRspTo(orig.ID).
		Build()

	return c.TopPort.Send(rsp) == nil
}

// admit pulls one request off TopPort and pushes it onto the transaction
// queue, provided there is room. Returns false (backpressure) when full.
func (c *Comp) admit() bool {
	msg := c.TopPort.PeekIncoming()
	if msg == nil {
		return false
	}

	if len(c.txQueue) >= c.queueSize {
		return false
	}

	req := c.translate(msg)
	c.txQueue = append(c.txQueue, req)
	c.TopPort.RetrieveIncoming()

	return true
}

func (c *Comp) translate(msg sim.Msg) *signal.Request {
	req := &signal.Request{
		ID:           msg.Meta().ID,
		ArrivalCycle: c.currentCycle,
		Status:       signal.StatusQueued,
		Tag:          msg,
	}

	switch m := msg.(type) {
	case *mem.ReadReq:
		req.PhysAddr = m.Address
		req.ThreadID = m.ThreadID
	case *mem.WriteReq:
		req.IsWrite = true
		req.PhysAddr = m.Address
		req.ThreadID = m.ThreadID
		req.Data = m.Data
	}

	addr := c.Translator.Translate(req.PhysAddr)
	req.Row, req.Col, req.Bank, req.Rank = addr.Row, addr.Col, addr.Bank, addr.Rank

	return req
}
