package whep

import (
	"strings"
	"unicode"

	"github.com/pion/webrtc/v3"
	"github.com/shynome/whep/linkrel"
)

// CamelCase turns link parameter names like "credential-type" into the
// RTCIceServer member names ("credentialType").
func CamelCase(key string) string {
	var b strings.Builder
	upper := false
	for i, r := range key {
		if (r == '-' || r == '_') && i+1 < len(key) && isLetter(key[i+1]) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isLetter(b byte) bool {
	return 'a' <= b && b <= 'z' || 'A' <= b && b <= 'Z'
}

// ICEServerParams gives one RTCIceServer-shaped map per relation: the
// relation URL under "urls", every parameter under its camel-cased name.
func ICEServerParams(relations []linkrel.Relation) []map[string]string {
	out := make([]map[string]string, 0, len(relations))
	for _, r := range relations {
		m := map[string]string{"urls": r.URL}
		for k, v := range r.Params {
			m[CamelCase(k)] = v
		}
		out = append(out, m)
	}
	return out
}

func (c *Client) iceServers(relations []linkrel.Relation) (servers []webrtc.ICEServer) {
	for _, params := range ICEServerParams(relations) {
		s := webrtc.ICEServer{URLs: []string{params["urls"]}}
		ok := true
		for k, v := range params {
			switch k {
			case "urls":
			case "username":
				s.Username = v
			case "credential":
				s.Credential = v
			case "credentialType":
				if v != "" && v != webrtc.ICECredentialTypePassword.String() {
					ok = false
				}
			default:
				c.log.Debug().Str("param", k).Str("urls", params["urls"]).Msg("ignore ice server parameter")
			}
		}
		if !ok {
			c.log.Warn().Str("urls", params["urls"]).Str("credentialType", params["credentialType"]).Msg("skip ice server with unsupported credential type")
			continue
		}
		servers = append(servers, s)
	}
	return
}
