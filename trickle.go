package whep

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/pion/webrtc/v3"
	"github.com/shynome/whep/sdpfrag"
)

// trickle holds what the next fragment has to carry. Guarded by Client.mu.
type trickle struct {
	candidates      []webrtc.ICECandidateInit
	endOfCandidates bool
	restart         bool

	scheduled bool
	gen       uint64 // bumped to drop scheduled flushes
}

func (t *trickle) empty() bool {
	return len(t.candidates) == 0 && !t.endOfCandidates && !t.restart
}

func (t *trickle) cancel() {
	t.gen++
	t.scheduled = false
}

func (c *Client) onICECandidate(cand *webrtc.ICECandidateInit) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if cand == nil {
		c.trickle.endOfCandidates = true
	} else {
		// only the first m-line is trickled, the rest is bundled on it
		if cand.SDPMLineIndex != nil && *cand.SDPMLineIndex > 0 {
			return
		}
		c.trickle.candidates = append(c.trickle.candidates, *cand)
	}
	c.scheduleFlushLocked()
}

func (c *Client) scheduleFlushLocked() {
	if c.trickle.scheduled {
		return
	}
	c.trickle.scheduled = true
	gen := c.trickle.gen
	c.sched.Schedule(func() { c.runFlush(gen) })
}

func (c *Client) runFlush(gen uint64) {
	err := c.flush(context.Background(), gen)
	if err == nil {
		return
	}
	c.log.Warn().Err(err).Msg("trickle")
	c.events.emit(Event{Name: EventError, Err: err})
}

func (c *Client) flush(ctx context.Context, gen uint64) (err error) {
	defer err2.Handle(&err)

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if c.stopped || gen != c.trickle.gen {
		c.mu.Unlock()
		return nil
	}
	c.trickle.scheduled = false
	// keep the buffers until there is a resource and credentials to send them with
	if c.trickle.empty() || !c.established {
		c.mu.Unlock()
		return nil
	}
	candidates, endOfCandidates, restart := c.trickle.candidates, c.trickle.endOfCandidates, c.trickle.restart
	c.trickle.candidates, c.trickle.endOfCandidates, c.trickle.restart = nil, false, false
	pc, resource, local := c.pc, c.resource, c.local
	c.mu.Unlock()

	if restart {
		try.To(pc.RestartICE())
		offer := try.To1(pc.CreateRestartOffer())
		creds, err := sdpfrag.ICECredentials(offer.SDP)
		if err != nil {
			return fmt.Errorf("%w: restart offer: %w", ErrProtocol, err)
		}
		try.To(pc.SetLocalDescription(offer))
		c.mu.Lock()
		c.local = creds
		c.mu.Unlock()
		local = creds
		// new candidates are coming for the new credentials
		endOfCandidates = false
	}

	frag := c.fragment(local, pc.Transceivers(), candidates, endOfCandidates)
	req := try.To1(c.newReq(ctx, http.MethodPatch, resource.String(), sdpfrag.MimeType, strings.NewReader(frag.String())))
	res := try.To1(c.doReq(opTrickle, req))
	defer res.Body.Close()
	c.metrics.flush(len(candidates))

	// 200 carries the remote credentials after a restart, 204 has no body
	if res.StatusCode != http.StatusOK {
		return nil
	}
	body := try.To1(io.ReadAll(res.Body))
	remote, err := sdpfrag.ICECredentials(string(body))
	if err != nil {
		return fmt.Errorf("%w: trickle answer: %w", ErrProtocol, err)
	}
	if c.isStopped() {
		return nil
	}
	current := pc.RemoteDescription()
	if current == nil {
		return fmt.Errorf("%w: no remote description to update", ErrPrecondition)
	}
	patched := SDP{Type: current.Type, SDP: sdpfrag.PatchICECredentials(current.SDP, remote)}
	try.To(pc.SetRemoteDescription(patched))

	c.mu.Lock()
	c.remote = remote
	c.mu.Unlock()
	return nil
}

// fragment groups candidates by mid in first-seen order. The first
// transceiver always leads when there is anything besides credentials.
func (c *Client) fragment(local sdpfrag.Credentials, transceivers []Transceiver, candidates []webrtc.ICECandidateInit, endOfCandidates bool) sdpfrag.Fragment {
	f := sdpfrag.Fragment{Credentials: local}
	if len(candidates) == 0 && !endOfCandidates {
		return f
	}
	if len(transceivers) == 0 {
		c.log.Warn().Int("candidates", len(candidates)).Msg("no transceivers to trickle candidates on")
		return f
	}
	first := transceivers[0]
	f.Media = append(f.Media, sdpfrag.Media{Kind: first.Kind, Mid: first.Mid, EndOfCandidates: endOfCandidates})
	index := map[string]int{first.Mid: 0}
	for _, cand := range candidates {
		mid := first.Mid
		if cand.SDPMid != nil && *cand.SDPMid != "" {
			mid = *cand.SDPMid
		}
		i, ok := index[mid]
		if !ok {
			t, found := findTransceiver(transceivers, mid)
			if !found {
				c.log.Warn().Str("mid", mid).Msg("drop candidate for unknown mid")
				continue
			}
			f.Media = append(f.Media, sdpfrag.Media{Kind: t.Kind, Mid: t.Mid, EndOfCandidates: endOfCandidates})
			i = len(f.Media) - 1
			index[mid] = i
		}
		line := cand.Candidate
		if !strings.HasPrefix(line, "candidate:") {
			line = "candidate:" + line
		}
		f.Media[i].Candidates = append(f.Media[i].Candidates, line)
	}
	return f
}

func findTransceiver(transceivers []Transceiver, mid string) (Transceiver, bool) {
	for _, t := range transceivers {
		if t.Mid == mid {
			return t, true
		}
	}
	return Transceiver{}, false
}
