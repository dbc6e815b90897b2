package dram

import (
	"github.com/sarchlab/nvmain/mem/dram/internal/addressmapping"
	"github.com/sarchlab/nvmain/mem/mem"
	"github.com/sarchlab/nvmain/sim"
)

// Root is the channel demultiplexer: it owns one controller per channel,
// routes incoming requests to the controller addressed by their translated
// channel field. It does not tick the channels; each ticks on its own.
type Root struct {
	*sim.TickingComponent

	TopPort sim.Port

	translator *addressmapping.Translator
	channels   []*Comp

	channelMapper *mem.BankedAddressPortMapper
	portByName    map[sim.RemotePort]sim.Port

	cycleLimit   uint64
	limited      bool
	currentCycle uint64
}

// SetCycleLimit bounds how many cycles Root will route before its Tick
// starts reporting no progress. It does not bound the channels themselves;
// callers should set the same limit on every channel Comp.
func (r *Root) SetCycleLimit(n uint64) {
	r.cycleLimit = n
	r.limited = true
}

// NewRoot wires channels (already built and named) behind a single
// upstream port, using translator to route each request to its channel.
func NewRoot(
	name string,
	engine sim.Engine,
	freq sim.Freq,
	translator *addressmapping.Translator,
	channels []*Comp,
) *Root {
	root := &Root{translator: translator, channels: channels}
	root.TickingComponent = sim.NewTickingComponent(name, engine, freq, root)
	root.TopPort = sim.NewPort(root, 4, 4, name+".TopPort")
	root.AddPort("Top", root.TopPort)

	// BankSize 1 turns the mapper into a direct channel-index lookup: the
	// translator has already picked the channel, so Find is only asked to
	// resolve that index to a port, never to re-derive it from an address.
	root.channelMapper = mem.NewBankedAddressPortMapper(1)
	root.portByName = make(map[sim.RemotePort]sim.Port, len(channels))
	for _, ch := range channels {
		remote := ch.TopPort.AsRemote()
		root.channelMapper.LowModules = append(root.channelMapper.LowModules, remote)
		root.portByName[remote] = ch.TopPort
	}

	root.TickNow()

	return root
}

// Tick forwards one pending request to its channel per cycle. Each channel
// ticks on its own schedule; Root only demultiplexes. Backpressure from a
// full channel leaves the request on TopPort for the next cycle.
func (r *Root) Tick() bool {
	if r.limited && r.currentCycle >= r.cycleLimit {
		return false
	}

	r.route()
	r.currentCycle++

	return true
}

func (r *Root) route() bool {
	msg, ok := r.TopPort.PeekIncoming().(mem.AccessReq)
	if !ok {
		return false
	}

	addr := r.translator.Translate(msg.GetAddress())
	if addr.Channel >= len(r.channels) {
		panic("translated channel index out of range")
	}

	dst := r.portByName[r.channelMapper.Find(uint64(addr.Channel))]
	forwarded := r.forward(msg.(sim.Msg), dst)
	if !forwarded {
		return false
	}

	r.TopPort.RetrieveIncoming()
	return true
}

// forward re-addresses msg to the target channel's port and delivers it
// directly; channels are internal, so no connection hop is needed.
func (r *Root) forward(msg sim.Msg, dst sim.Port) bool {
	meta := msg.Meta()
	meta.Dst = dst.AsRemote()
	return dst.Deliver(msg) == nil
}
