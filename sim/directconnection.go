package sim

// DirectConnection connects a group of ports. A send wakes the connection
// for its next tick, which moves every waiting message to its destination;
// each tick serves the source ports round-robin, starting one port later
// than the tick before.
type DirectConnection struct {
	*TickingComponent

	nextPortID int
	ports      []Port
}

// PlugIn marks the port connects to this DirectConnection.
func (c *DirectConnection) PlugIn(port Port) {
	c.Lock()
	defer c.Unlock()

	c.ports = append(c.ports, port)
	port.SetConnection(c)
}

// Unplug marks the port no longer connects to this DirectConnection.
func (c *DirectConnection) Unplug(_ Port) {
	panic("not implemented")
}

// NotifyAvailable is called by a port to notify that it can accept more
// incoming messages.
func (c *DirectConnection) NotifyAvailable(_ Port) {
	c.TickLater()
}

// NotifySend is called by a port to notify that it has a message to send.
func (c *DirectConnection) NotifySend() {
	c.TickLater()
}

func (c *DirectConnection) findPort(remote RemotePort) Port {
	for _, p := range c.ports {
		if p.AsRemote() == remote {
			return p
		}
	}

	return nil
}

// Tick moves messages waiting in the outgoing buffer of every plugged-in
// port to the incoming buffer of their destination.
func (c *DirectConnection) Tick() bool {
	madeProgress := false

	for i := 0; i < len(c.ports); i++ {
		portID := (i + c.nextPortID) % len(c.ports)
		madeProgress = c.forwardMany(c.ports[portID]) || madeProgress
	}

	if len(c.ports) > 0 {
		c.nextPortID = (c.nextPortID + 1) % len(c.ports)
	}

	return madeProgress
}

func (c *DirectConnection) forwardMany(src Port) bool {
	madeProgress := false

	for {
		msg := src.PeekOutgoing()
		if msg == nil {
			break
		}

		dst := c.findPort(msg.Meta().Dst)
		if dst == nil {
			panic("message sent to a port not connected to this connection")
		}

		if dst.Deliver(msg) != nil {
			break
		}

		src.RetrieveOutgoing()

		madeProgress = true
	}

	return madeProgress
}

// NewDirectConnection creates a new DirectConnection object
func NewDirectConnection(
	name string,
	engine Engine,
	freq Freq,
) *DirectConnection {
	c := new(DirectConnection)
	c.TickingComponent = NewSecondaryTickingComponent(name, engine, freq, c)

	return c
}
