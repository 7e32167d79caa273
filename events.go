package whep

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/donovanhide/eventsource"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/pion/webrtc/v3"
)

// Server-sent event names a WHEP resource is asked for by default.
const (
	EventActive      = "active"
	EventInactive    = "inactive"
	EventLayers      = "layers"
	EventViewerCount = "viewercount"
)

// Events published by the client itself.
const (
	EventState           = "state"
	EventConnectionState = "connectionstate"
	EventError           = "error"

	// EventAny matches every event.
	EventAny = "*"
)

var DefaultEvents = []string{EventActive, EventInactive, EventLayers, EventViewerCount}

type Event struct {
	Name string

	// set for server-sent events
	ID   string
	Data string

	State           State                      // EventState
	ConnectionState webrtc.PeerConnectionState // EventConnectionState
	Err             error                      // EventError
}

type ListenerID uint64

type listener struct {
	id   ListenerID
	name string
	fn   func(Event)
}

type emitter struct {
	mu        sync.Mutex
	next      ListenerID
	listeners []listener
}

func (e *emitter) add(name string, fn func(Event)) ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.listeners = append(e.listeners, listener{id: e.next, name: name, fn: fn})
	return e.next
}

func (e *emitter) remove(id ListenerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (e *emitter) emit(ev Event) {
	e.mu.Lock()
	var fns []func(Event)
	for _, l := range e.listeners {
		if l.name == ev.Name || l.name == EventAny {
			fns = append(fns, l.fn)
		}
	}
	e.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// AddListener registers fn for events called name, or for all events with
// EventAny. Listeners run on the goroutine that produced the event.
func (c *Client) AddListener(name string, fn func(Event)) ListenerID {
	return c.events.add(name, fn)
}

func (c *Client) RemoveListener(id ListenerID) bool {
	return c.events.remove(id)
}

func supportedEvents(params map[string]string) []string {
	if declared := strings.Fields(params["events"]); len(declared) > 0 {
		return declared
	}
	return DefaultEvents
}

func (c *Client) subscribe(eventsURL *url.URL, events []string) {
	if err := c.openEvents(eventsURL, events); err != nil {
		c.log.Warn().Err(err).Str("url", eventsURL.String()).Msg("server-sent events disabled")
	}
}

func (c *Client) openEvents(eventsURL *url.URL, events []string) (err error) {
	defer err2.Handle(&err)

	ctx := context.Background()
	body := try.To1(json.Marshal(events))
	req := try.To1(c.newReq(ctx, http.MethodPost, eventsURL.String(), mimeJSON, bytes.NewReader(body)))
	res := try.To1(c.doReq(opEvents, req))
	res.Body.Close()

	loc := res.Header.Get("Location")
	if loc == "" {
		return ErrMissingLocation
	}
	streamURL := try.To1(eventsURL.Parse(loc))

	if c.isStopped() {
		return ErrClosed
	}
	sreq := try.To1(c.newReq(ctx, http.MethodGet, streamURL.String(), "", nil))
	stream := try.To1(eventsource.SubscribeWith("", c.http, sreq))

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		stream.Close()
		return ErrClosed
	}
	c.stream = stream
	c.mu.Unlock()

	c.log.Debug().Str("url", streamURL.String()).Strs("events", events).Msg("event stream open")
	go c.pump(stream)
	return
}

func (c *Client) pump(stream *eventsource.Stream) {
	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-stream.Events:
			if !ok {
				return
			}
			name := ev.Event()
			if name == "" {
				name = "message"
			}
			c.metrics.event(name)
			c.events.emit(Event{Name: name, ID: ev.Id(), Data: ev.Data()})
		case err, ok := <-stream.Errors:
			if !ok {
				return
			}
			c.log.Debug().Err(err).Msg("event stream error")
		}
	}
}
