// Package linkrel parses the Link header a WHEP server uses to advertise
// extensions and ICE servers.
package linkrel

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

type Relation struct {
	Type   string
	URL    string
	Params map[string]string
}

// Links maps a relation type to its relations in header order.
type Links map[string][]Relation

// Add appends r under its type, creating the list on first use.
func (l Links) Add(r Relation) {
	l[r.Type] = append(l[r.Type], r)
}

func (l Links) Get(rel string) []Relation { return l[rel] }

func (l Links) First(rel string) (r Relation, ok bool) {
	list := l[rel]
	if len(list) == 0 {
		return
	}
	return list[0], true
}

func (l Links) Has(rel string) bool { return len(l[rel]) > 0 }

var (
	ErrNoURL    = errors.New("link segment has no <url>")
	ErrEmptyKey = errors.New("link parameter has empty key")
	ErrNoRel    = errors.New("link segment has no rel")
)

// SegmentError reports a segment that was skipped.
type SegmentError struct {
	Segment string
	Err     error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("skip link segment %q: %s", e.Segment, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

var segmentSep = regexp.MustCompile(`,\s+<`)

// Split cuts a header value at every comma followed by whitespace and '<'.
func Split(header string) (segments []string) {
	start := 0
	for _, m := range segmentSep.FindAllStringIndex(header, -1) {
		segments = append(segments, header[start:m[0]])
		start = m[1] - 1 // keep the '<'
	}
	return append(segments, header[start:])
}

// Parse is best effort: segments that can't be parsed or classified are
// returned in skipped and left out of links.
func Parse(header string) (links Links, skipped []error) {
	links = Links{}
	if strings.TrimSpace(header) == "" {
		return
	}
	for _, seg := range Split(header) {
		r, err := ParseSegment(seg)
		if err != nil {
			skipped = append(skipped, &SegmentError{Segment: seg, Err: err})
			continue
		}
		links.Add(r)
	}
	return
}

func ParseSegment(seg string) (r Relation, err error) {
	items := strings.Split(seg, ";")
	u := strings.TrimSpace(items[0])
	if !strings.HasPrefix(u, "<") || !strings.HasSuffix(u, ">") {
		return r, ErrNoURL
	}
	r.URL = strings.TrimSpace(u[1 : len(u)-1])
	r.Params = map[string]string{}
	for _, item := range items[1:] {
		key, value, _ := strings.Cut(item, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return r, ErrEmptyKey
		}
		value = unquote(strings.TrimSpace(value))
		if key == "rel" {
			r.Type = value
			continue
		}
		r.Params[key] = value
	}
	if r.Type == "" {
		return r, ErrNoRel
	}
	return r, nil
}

func unquote(v string) string {
	v = strings.ReplaceAll(v, `"`, "")
	return strings.ReplaceAll(v, `'`, "")
}

// quote is the inverse of unquote: values are taken verbatim.
func quote(v string) string { return `"` + v + `"` }

// String formats r as a single Link segment, parameters sorted by key.
func (r Relation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<%s>; rel=%s", r.URL, quote(r.Type))
	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "; %s=%s", k, quote(r.Params[k]))
	}
	return b.String()
}

// String formats l as a Link header value, relation types sorted.
func (l Links) String() string {
	types := make([]string, 0, len(l))
	for t := range l {
		types = append(types, t)
	}
	sort.Strings(types)
	var segs []string
	for _, t := range types {
		for _, r := range l[t] {
			segs = append(segs, r.String())
		}
	}
	return strings.Join(segs, ", ")
}
