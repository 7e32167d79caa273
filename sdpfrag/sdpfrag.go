// Package sdpfrag reads and writes application/trickle-ice-sdpfrag bodies.
package sdpfrag

import (
	"errors"
	"regexp"
	"strings"
)

const MimeType = "application/trickle-ice-sdpfrag"

type Credentials struct {
	Ufrag string
	Pwd   string
}

func (c Credentials) Valid() bool { return c.Ufrag != "" && c.Pwd != "" }

type Media struct {
	Kind            string
	Mid             string
	Candidates      []string // raw attribute values, "candidate:..."
	EndOfCandidates bool
}

type Fragment struct {
	Credentials
	Media []Media
}

var ErrMissingICECredentials = errors.New("sdp has no a=ice-ufrag / a=ice-pwd lines")

var (
	ufragLine = regexp.MustCompile(`(?m)^a=ice-ufrag:([^\r\n]*)\r?\n`)
	pwdLine   = regexp.MustCompile(`(?m)^a=ice-pwd:([^\r\n]*)\r?\n`)
)

// ICECredentials returns the first ice-ufrag and ice-pwd found in an SDP or
// fragment body.
func ICECredentials(body string) (c Credentials, err error) {
	u := ufragLine.FindStringSubmatch(body)
	p := pwdLine.FindStringSubmatch(body)
	if u == nil || p == nil {
		return c, ErrMissingICECredentials
	}
	return Credentials{Ufrag: u[1], Pwd: p[1]}, nil
}

var (
	ufragValue = regexp.MustCompile(`(?m)^a=ice-ufrag:[^\r\n]*`)
	pwdValue   = regexp.MustCompile(`(?m)^a=ice-pwd:[^\r\n]*`)
)

// PatchICECredentials rewrites every ice-ufrag and ice-pwd line of sdp to c.
// All other bytes are kept as they are.
func PatchICECredentials(sdp string, c Credentials) string {
	sdp = ufragValue.ReplaceAllLiteralString(sdp, "a=ice-ufrag:"+c.Ufrag)
	return pwdValue.ReplaceAllLiteralString(sdp, "a=ice-pwd:"+c.Pwd)
}

func (f Fragment) String() string {
	var b strings.Builder
	b.WriteString("a=ice-ufrag:" + f.Ufrag + "\r\n")
	b.WriteString("a=ice-pwd:" + f.Pwd + "\r\n")
	for _, m := range f.Media {
		b.WriteString("m=" + m.Kind + " 9 RTP/AVP 0\r\n")
		b.WriteString("a=mid:" + m.Mid + "\r\n")
		for _, c := range m.Candidates {
			b.WriteString("a=" + c + "\r\n")
		}
		if m.EndOfCandidates {
			b.WriteString("a=end-of-candidates\r\n")
		}
	}
	return b.String()
}

// Parse reads a fragment. Unknown lines are ignored; credential lines after
// the first m= line belong to the session, as there is only one transport.
func Parse(body string) (f Fragment, err error) {
	var media *Media
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "a=ice-ufrag:"):
			f.Ufrag = strings.TrimPrefix(line, "a=ice-ufrag:")
		case strings.HasPrefix(line, "a=ice-pwd:"):
			f.Pwd = strings.TrimPrefix(line, "a=ice-pwd:")
		case strings.HasPrefix(line, "m="):
			kind, _, _ := strings.Cut(strings.TrimPrefix(line, "m="), " ")
			f.Media = append(f.Media, Media{Kind: kind})
			media = &f.Media[len(f.Media)-1]
		case media == nil:
		case strings.HasPrefix(line, "a=mid:"):
			media.Mid = strings.TrimPrefix(line, "a=mid:")
		case strings.HasPrefix(line, "a=candidate:"):
			media.Candidates = append(media.Candidates, strings.TrimPrefix(line, "a="))
		case line == "a=end-of-candidates":
			media.EndOfCandidates = true
		}
	}
	if !f.Valid() {
		return f, ErrMissingICECredentials
	}
	return f, nil
}
