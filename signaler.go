package whep

import (
	"context"
	"io"
	"net/http"
	"strconv"
)

const (
	mimeSDP  = "application/sdp"
	mimeJSON = "application/json"
)

// request op names, used as the metrics "op" label
const (
	opOffer     = "offer"
	opEvents    = "events"
	opTrickle   = "trickle"
	opMute      = "mute"
	opLayer     = "layer"
	opUnlayer   = "unlayer"
	opTerminate = "terminate"
)

func (c *Client) newReq(ctx context.Context, method, target, contentType string, body io.Reader) (req *http.Request, err error) {
	if body == nil {
		body = http.NoBody
	}
	if req, err = http.NewRequestWithContext(ctx, method, target, body); err != nil {
		return
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return
}

// doReq returns the response only for 2xx statuses; the caller closes the body.
func (c *Client) doReq(op string, req *http.Request) (res *http.Response, err error) {
	res, err = c.http.Do(req)
	if err != nil {
		c.metrics.request(op, "error")
		return
	}
	c.metrics.request(op, strconv.Itoa(res.StatusCode))
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return
	}
	defer res.Body.Close()
	var errText []byte
	if errText, err = io.ReadAll(res.Body); err != nil {
		return nil, err
	}
	return nil, &RejectedError{
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: res.StatusCode,
		Body:       string(errText),
	}
}

// send issues a request whose response body is not needed.
func (c *Client) send(op string, req *http.Request) (err error) {
	res, err := c.doReq(op, req)
	if err != nil {
		return
	}
	io.Copy(io.Discard, res.Body)
	return res.Body.Close()
}
