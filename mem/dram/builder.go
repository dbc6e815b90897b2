package dram

import (
	"github.com/sarchlab/nvmain/mem/dram/internal/addressmapping"
	"github.com/sarchlab/nvmain/mem/dram/internal/cmdq"
	"github.com/sarchlab/nvmain/mem/dram/internal/org"
	"github.com/sarchlab/nvmain/mem/dram/internal/refresh"
	"github.com/sarchlab/nvmain/mem/dram/internal/trans"
	"github.com/sarchlab/nvmain/mem/mem"
	"github.com/sarchlab/nvmain/memory"
	"github.com/sarchlab/nvmain/sim"
)

// Builder assembles a Comp from topology, timing, and policy parameters.
// Each With* method returns a modified copy, so a builder can be
// configured once and reused to build multiple channels.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq

	ranks    int
	banks    int
	rows     int
	cols     int
	colBytes uint64

	timing org.Timing

	queueSize           int
	starvationThreshold int
	closePage           trans.ClosePage
	scheduleScheme      cmdq.Scheme

	useRefresh              bool
	banksPerRefresh         int
	refreshRows             int
	tRFI                    uint64
	delayedRefreshThreshold int

	addressOrder []addressmapping.Field

	storageCapacity uint64

	recorder TaskRecorder
}

// MakeBuilder returns a Builder with the timing and topology defaults used
// throughout the end-to-end scenarios.
func MakeBuilder() Builder {
	return Builder{
		freq:     1 * sim.GHz,
		ranks:    1,
		banks:    8,
		rows:     16384,
		cols:     2048,
		colBytes: 64,

		timing: org.Timing{
			TRCD: 10, TRP: 10, TRAS: 20, TRC: 30,
			TCCD: 4, TRFC: 160, TRTP: 5,
			TCWD: 5, TBURST: 4, TWR: 10, TWTR: 5, AL: 0,
		},

		queueSize:           8,
		starvationThreshold: 4,
		closePage:           trans.ClosePageOpen,
		scheduleScheme:      cmdq.SchemeRankFirst,

		useRefresh:              false,
		banksPerRefresh:         1,
		refreshRows:             1,
		tRFI:                    64000,
		delayedRefreshThreshold: 8,

		storageCapacity: 4 * mem.GB,
	}
}

// WithEngine sets the discrete-event engine driving the controller.
func (b Builder) WithEngine(e sim.Engine) Builder {
	b.engine = e
	return b
}

// WithFreq sets the controller's tick frequency.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithTopology sets ranks, banks, rows, and columns per bank.
func (b Builder) WithTopology(ranks, banks, rows, cols int) Builder {
	b.ranks, b.banks, b.rows, b.cols = ranks, banks, rows, cols
	return b
}

// WithColumnBytes sets the number of bytes a single column addresses.
func (b Builder) WithColumnBytes(n uint64) Builder {
	b.colBytes = n
	return b
}

// WithTiming sets the device timing constants.
func (b Builder) WithTiming(t org.Timing) Builder {
	t.Rows = b.rows
	b.timing = t
	return b
}

// WithQueueSize sets the transaction queue's capacity.
func (b Builder) WithQueueSize(n int) Builder {
	b.queueSize = n
	return b
}

// WithStarvationThreshold sets how many consecutive row-buffer hits may
// preempt an older miss before the Starved selector fires.
func (b Builder) WithStarvationThreshold(n int) Builder {
	b.starvationThreshold = n
	return b
}

// WithClosePage sets the page-management policy (0, 1, or 2).
func (b Builder) WithClosePage(policy int) Builder {
	b.closePage = trans.ClosePage(policy)
	return b
}

// WithScheduleScheme sets the command-queue rotation scheme (0, 1, or 2).
func (b Builder) WithScheduleScheme(scheme int) Builder {
	b.scheduleScheme = cmdq.Scheme(scheme)
	return b
}

// WithRefresh enables the staggered refresh engine and its parameters.
func (b Builder) WithRefresh(banksPerRefresh, refreshRows int, tRFI uint64, threshold int) Builder {
	b.useRefresh = true
	b.banksPerRefresh = banksPerRefresh
	b.refreshRows = refreshRows
	b.tRFI = tRFI
	b.delayedRefreshThreshold = threshold
	return b
}

// WithAddressOrder sets the field order the translator decomposes physical
// addresses in. A nil order uses addressmapping.DefaultOrder.
func (b Builder) WithAddressOrder(order []addressmapping.Field) Builder {
	b.addressOrder = order
	return b
}

// WithStorageCapacity sets the backing byte storage's addressable capacity.
func (b Builder) WithStorageCapacity(capacity uint64) Builder {
	b.storageCapacity = capacity
	return b
}

// WithTaskRecorder plugs a hook bus into every channel this builder
// produces afterward.
func (b Builder) WithTaskRecorder(r TaskRecorder) Builder {
	b.recorder = r
	return b
}

// Build constructs a channel controller named name.
func (b Builder) Build(name string) *Comp {
	c := &Comp{}
	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)
	c.TopPort = sim.NewPort(c, 4, 4, name+".TopPort")
	c.AddPort("Top", c.TopPort)

	c.Storage = memory.NewStorage(b.storageCapacity)

	topology := addressmapping.Topology{
		Rows: b.rows, Cols: b.cols, Banks: b.banks, Ranks: b.ranks, Channels: 1,
	}
	c.Translator = addressmapping.NewTranslator(topology, b.colBytes, b.addressOrder)

	c.timing = b.timing
	c.timing.Rows = b.rows
	c.channel = org.NewChannel(b.ranks, b.banks, c.timing)
	c.queues = cmdq.NewQueues(b.ranks, b.banks, b.scheduleScheme)
	c.state = cmdq.NewSchedulerState(b.ranks, b.banks, b.rows)
	c.scheduler = &trans.Scheduler{
		State:               c.state,
		Queues:              c.queues,
		StarvationThreshold: b.starvationThreshold,
		ClosePage:           b.closePage,
	}

	refreshCfg := refresh.Config{
		UseRefresh:              b.useRefresh,
		Ranks:                   b.ranks,
		Banks:                   b.banks,
		BanksPerRefresh:         b.banksPerRefresh,
		Rows:                    b.rows,
		RefreshRows:             b.refreshRows,
		TRFI:                    b.tRFI,
		DelayedRefreshThreshold: b.delayedRefreshThreshold,
	}
	c.refresher = refresh.NewEngine(refreshCfg, 0)

	c.queueSize = b.queueSize
	c.recorder = b.recorder

	c.TickNow()

	return c
}
