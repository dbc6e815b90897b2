package main

import (
	"github.com/sarchlab/nvmain/mem/mem"
	"github.com/sarchlab/nvmain/sim"
	"github.com/sarchlab/nvmain/trace"
)

// injector drives a memory system from a trace file, one access at a time,
// mirroring the reference driver's "stall until accepted" issuance loop and
// its "ride it out 'til the end" tail once the trace is exhausted.
type injector struct {
	*sim.TickingComponent

	OutPort sim.Port
	memPort sim.RemotePort

	reader *trace.Reader

	cycleLimit   uint64
	currentCycle uint64

	pending  *trace.Access
	traceEOF bool

	// downstream is the set of memory-side components to halt once the
	// trace runs dry with no cycle budget set, mirroring the reference
	// driver's immediate exit rather than draining in-flight requests.
	downstream []cycleLimiter
}

// cycleLimiter is any component whose ticking can be bounded to a cycle
// count, so the injector can halt the memory system once its work is done.
type cycleLimiter interface {
	SetCycleLimit(uint64)
}

func newInjector(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	reader *trace.Reader,
	memPort sim.RemotePort,
	cycleLimit uint64,
	downstream []cycleLimiter,
) *injector {
	inj := &injector{reader: reader, memPort: memPort, cycleLimit: cycleLimit, downstream: downstream}
	inj.TickingComponent = sim.NewTickingComponent(name, engine, freq, inj)
	inj.OutPort = sim.NewPort(inj, 4, 4, name+".OutPort")
	inj.AddPort("Out", inj.OutPort)

	inj.TickNow()

	return inj
}

// Tick issues at most one access per cycle, retrying an access that the
// memory system refused until it is accepted, then advances the cycle
// counter unconditionally. It returns false once the cycle budget is
// exhausted or the trace is drained and there is no budget left to ride out.
func (inj *injector) Tick() bool {
	inj.drainResponses()

	if inj.cycleLimit != 0 && inj.currentCycle >= inj.cycleLimit {
		return false
	}

	if inj.pending == nil && !inj.traceEOF {
		a, ok := inj.reader.Next()
		if !ok {
			inj.traceEOF = true
		} else {
			inj.pending = &a
		}
	}

	if inj.traceEOF {
		inj.currentCycle++
		if inj.cycleLimit != 0 && inj.currentCycle >= inj.cycleLimit {
			return false
		}
		if inj.cycleLimit == 0 {
			inj.haltDownstream()
			return false
		}
		return true
	}

	if inj.pending.Cycle > inj.currentCycle {
		inj.currentCycle++
		return true
	}

	if inj.issue(*inj.pending) {
		inj.pending = nil
	}

	inj.currentCycle++

	return true
}

func (inj *injector) issue(a trace.Access) bool {
	var msg sim.Msg

	switch a.Op {
	case trace.OpRead:
		msg = mem.ReadReqBuilder{}.
			WithSrc(inj.OutPort.AsRemote()).
			WithDst(inj.memPort).
			WithAddress(a.Address).
			WithByteSize(8).
			WithThreadID(a.ThreadID).
			Build()
	case trace.OpWrite:
		data := make([]byte, 8)
		for i := range data {
			data[i] = byte(a.Data >> (8 * uint(i)))
		}
		msg = mem.WriteReqBuilder{}.
			WithSrc(inj.OutPort.AsRemote()).
			WithDst(inj.memPort).
			WithAddress(a.Address).
			WithData(data).
			WithThreadID(a.ThreadID).
			Build()
	}

	return inj.OutPort.Send(msg) == nil
}

// haltDownstream stops every downstream component from the current cycle,
// used when the trace ends with no configured cycle budget.
func (inj *injector) haltDownstream() {
	for _, d := range inj.downstream {
		d.SetCycleLimit(inj.currentCycle)
	}
}

// drainResponses discards data-ready and write-done responses so the memory
// system's response port never backs up against this driver.
func (inj *injector) drainResponses() {
	for inj.OutPort.PeekIncoming() != nil {
		inj.OutPort.RetrieveIncoming()
	}
}

// Done reports whether the trace has been fully replayed.
func (inj *injector) Done() bool {
	return inj.traceEOF && inj.pending == nil
}

// CyclesRun returns how many cycles the injector has advanced through.
func (inj *injector) CyclesRun() uint64 {
	return inj.currentCycle
}
