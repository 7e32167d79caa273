package whep

import (
	"context"

	"github.com/looplab/fsm"
)

type State string

const (
	StateIdle        State = "idle"
	StateNegotiating State = "negotiating"
	StateActive      State = "active"
	StateFailed      State = "failed"
	StateClosed      State = "closed"
)

func (s State) String() string { return string(s) }

const (
	evView      = "view"
	evEstablish = "establish"
	evFail      = "fail"
	evClose     = "close"
)

func newStateMachine() *fsm.FSM {
	return fsm.NewFSM(
		StateIdle.String(),
		fsm.Events{
			{Name: evView, Src: []string{StateIdle.String()}, Dst: StateNegotiating.String()},
			{Name: evEstablish, Src: []string{StateNegotiating.String()}, Dst: StateActive.String()},
			{Name: evFail, Src: []string{StateNegotiating.String(), StateActive.String()}, Dst: StateFailed.String()},
			{Name: evClose, Src: []string{
				StateNegotiating.String(), StateActive.String(), StateFailed.String(),
			}, Dst: StateClosed.String()},
		},
		fsm.Callbacks{},
	)
}

func (c *Client) State() State { return State(c.fsm.Current()) }

// transition fires event and publishes the new state. State listeners run
// after the machine is released, so they may call back into the client.
func (c *Client) transition(ctx context.Context, event string) bool {
	src := c.fsm.Current()
	if err := c.fsm.Event(ctx, event); err != nil {
		c.log.Debug().Err(err).Str("event", event).Str("state", src).Msg("state unchanged")
		return false
	}
	dst := State(c.fsm.Current())
	c.log.Debug().Str("from", src).Str("to", dst.String()).Msg("state")
	c.events.emit(Event{Name: EventState, State: dst})
	return true
}
