package linkrel

import (
	"errors"
	"testing"

	"github.com/lainio/err2/assert"
)

const header = `<https://whep.example/res/1/sse>; rel="urn:ietf:params:whep:ext:core:server-sent-events"; events="active inactive", ` +
	`<stun:stun.example.net>; rel="ice-server", ` +
	`<turn:turn.example.net?transport=udp>; rel="ice-server"; username="user"; credential='pa=ss'; credential-type="password", ` +
	`<https://whep.example/res/1/layer>; rel=urn:ietf:params:whep:ext:core:layer`

func TestParse(t *testing.T) {
	links, skipped := Parse(header)
	assert.Equal(len(skipped), 0)
	assert.Equal(len(links), 3)

	sse, ok := links.First("urn:ietf:params:whep:ext:core:server-sent-events")
	assert.That(ok)
	assert.Equal(sse.URL, "https://whep.example/res/1/sse")
	assert.Equal(sse.Params["events"], "active inactive")
	_, hasRel := sse.Params["rel"]
	assert.That(!hasRel)

	ice := links.Get("ice-server")
	assert.Equal(len(ice), 2)
	assert.Equal(ice[0].URL, "stun:stun.example.net")
	assert.Equal(len(ice[0].Params), 0)
	assert.Equal(ice[1].URL, "turn:turn.example.net?transport=udp")
	assert.Equal(ice[1].Params["username"], "user")
	assert.Equal(ice[1].Params["credential"], "pa=ss")
	assert.Equal(ice[1].Params["credential-type"], "password")

	layer, ok := links.First("urn:ietf:params:whep:ext:core:layer")
	assert.That(ok)
	assert.Equal(layer.URL, "https://whep.example/res/1/layer")
}

func TestParseSkipsBadSegments(t *testing.T) {
	links, skipped := Parse(`<https://a.example/x>; title="no rel", ` +
		`<https://b.example; rel="ice-server", ` +
		`<stun:ok.example>; rel="ice-server"; =oops, ` +
		`<stun:good.example>; rel="ice-server"`)

	assert.Equal(len(skipped), 3)
	assert.That(errors.Is(skipped[0], ErrNoRel))
	assert.That(errors.Is(skipped[1], ErrNoURL))
	assert.That(errors.Is(skipped[2], ErrEmptyKey))
	var segErr *SegmentError
	assert.That(errors.As(skipped[0], &segErr))
	assert.Equal(segErr.Segment, `<https://a.example/x>; title="no rel"`)

	ice := links.Get("ice-server")
	assert.Equal(len(ice), 1)
	assert.Equal(ice[0].URL, "stun:good.example")
}

func TestParseEmpty(t *testing.T) {
	links, skipped := Parse("  ")
	assert.Equal(len(links), 0)
	assert.Equal(len(skipped), 0)
	assert.That(!links.Has("ice-server"))
}

func TestSplitKeepsCommasInsideSegments(t *testing.T) {
	segs := Split(`<stun:a.example>; rel="ice-server"; note="x,y", <stun:b.example>; rel="ice-server"`)
	assert.Equal(len(segs), 2)
	assert.Equal(segs[0], `<stun:a.example>; rel="ice-server"; note="x,y"`)
	assert.Equal(segs[1], `<stun:b.example>; rel="ice-server"`)
}

func TestRoundTrip(t *testing.T) {
	links, _ := Parse(header)
	again, skipped := Parse(links.String())
	assert.Equal(len(skipped), 0)
	assert.Equal(len(again), len(links))
	for rel, list := range links {
		got := again.Get(rel)
		assert.Equal(len(got), len(list))
		for i := range list {
			assert.Equal(got[i].URL, list[i].URL)
			assert.DeepEqual(got[i].Params, list[i].Params)
		}
	}
}

func TestRoundTripKeepsValuesVerbatim(t *testing.T) {
	const in = `<turn:t.example>; rel="ice-server"; credential="pa\ss"; username="a b"`
	links, _ := Parse(in)
	for i := 0; i < 3; i++ {
		links, _ = Parse(links.String())
	}
	r, ok := links.First("ice-server")
	assert.That(ok)
	assert.Equal(r.Params["credential"], `pa\ss`)
	assert.Equal(r.Params["username"], "a b")
	assert.Equal(links.String(), `<turn:t.example>; rel="ice-server"; credential="pa\ss"; username="a b"`)
}

func TestLinksAdd(t *testing.T) {
	links := Links{}
	links.Add(Relation{Type: "ice-server", URL: "stun:1"})
	links.Add(Relation{Type: "ice-server", URL: "stun:2"})
	list := links.Get("ice-server")
	assert.Equal(len(list), 2)
	assert.Equal(list[0].URL, "stun:1")
	assert.Equal(list[1].URL, "stun:2")
}
