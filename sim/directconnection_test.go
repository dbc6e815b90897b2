package sim

import (
	"fmt"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type directConnAgent struct {
	*TickingComponent

	msgsOut []Msg
	msgsIn  []Msg

	OutPort Port
}

func newDirectConnAgent(engine Engine, freq Freq, name string) *directConnAgent {
	a := new(directConnAgent)
	a.TickingComponent = NewTickingComponent(name, engine, freq, a)
	a.OutPort = NewPort(a, 4, 4, name+".OutPort")
	a.AddPort("Out", a.OutPort)
	return a
}

func (a *directConnAgent) Tick() bool {
	madeProgress := false

	msgIn := a.OutPort.RetrieveIncoming()
	if msgIn != nil {
		a.msgsIn = append(a.msgsIn, msgIn)
		madeProgress = true
	}

	if len(a.msgsOut) > 0 {
		err := a.OutPort.Send(a.msgsOut[0])
		if err == nil {
			madeProgress = true
			a.msgsOut = a.msgsOut[1:]
		}
	}

	return madeProgress
}

var _ = Describe("DirectConnection", func() {
	var (
		engine     Engine
		connection *DirectConnection
		agents     []*directConnAgent
	)

	BeforeEach(func() {
		engine = NewSerialEngine()
		connection = NewDirectConnection("Conn", engine, 1*GHz)
		agents = nil
	})

	It("should deliver a message between two plugged-in ports", func() {
		a := newDirectConnAgent(engine, 1*Hz, "A")
		b := newDirectConnAgent(engine, 1*Hz, "B")
		connection.PlugIn(a.OutPort)
		connection.PlugIn(b.OutPort)

		msg := &sampleMsg{}
		msg.Src = a.OutPort.AsRemote()
		msg.Dst = b.OutPort.AsRemote()
		a.msgsOut = append(a.msgsOut, msg)
		a.TickLater()

		engine.Run()

		Expect(b.msgsIn).To(HaveLen(1))
		Expect(b.msgsIn[0]).To(BeIdenticalTo(msg))
	})

	It("should panic when a message targets a port that is not plugged in",
		func() {
			a := newDirectConnAgent(engine, 1*Hz, "A")
			connection.PlugIn(a.OutPort)

			msg := &sampleMsg{}
			msg.Src = a.OutPort.AsRemote()
			msg.Dst = RemotePort("NotConnected")
			a.msgsOut = append(a.msgsOut, msg)
			a.TickLater()

			Expect(func() { engine.Run() }).To(Panic())
		})

	It("should deliver all messages among many agents", func() {
		numAgents := 10
		numMsgsPerAgent := 100

		for i := 0; i < numAgents; i++ {
			a := newDirectConnAgent(engine, 1*Hz, fmt.Sprintf("Agent%d", i))
			agents = append(agents, a)
			connection.PlugIn(a.OutPort)
		}

		for _, a := range agents {
			for i := 0; i < numMsgsPerAgent; i++ {
				dst := agents[rand.Intn(len(agents))]
				for dst == a {
					dst = agents[rand.Intn(len(agents))]
				}

				msg := &sampleMsg{}
				msg.Src = a.OutPort.AsRemote()
				msg.Dst = dst.OutPort.AsRemote()
				a.msgsOut = append(a.msgsOut, msg)
			}
			a.TickLater()
		}

		engine.Run()

		total := 0
		for _, a := range agents {
			total += len(a.msgsIn)
		}
		Expect(total).To(Equal(numAgents * numMsgsPerAgent))
	})
})
