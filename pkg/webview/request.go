package webview

import (
	"fmt"
	"io"
	"net/textproto"
)

// Header is an ordered collection of header fields with case-insensitive
// keys. Iteration order is the order fields were first set.
type Header struct {
	keys   []string
	values map[string][]string
}

// NewHeader returns an empty Header.
func NewHeader() Header {
	return Header{values: make(map[string][]string)}
}

func (h *Header) canonical(key string) string {
	return textproto.CanonicalMIMEHeaderKey(key)
}

// Set replaces all values for key.
func (h *Header) Set(key, value string) {
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	ck := h.canonical(key)
	if _, ok := h.values[ck]; !ok {
		h.keys = append(h.keys, ck)
	}
	h.values[ck] = []string{value}
}

// Add appends a value for key, keeping existing values.
func (h *Header) Add(key, value string) {
	if h.values == nil {
		h.values = make(map[string][]string)
	}
	ck := h.canonical(key)
	if _, ok := h.values[ck]; !ok {
		h.keys = append(h.keys, ck)
	}
	h.values[ck] = append(h.values[ck], value)
}

// Get returns the first value for key, or "".
func (h *Header) Get(key string) string {
	if h.values == nil {
		return ""
	}
	vs := h.values[h.canonical(key)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values for key.
func (h *Header) Values(key string) []string {
	if h.values == nil {
		return nil
	}
	return h.values[h.canonical(key)]
}

// Len returns the number of distinct keys.
func (h *Header) Len() int { return len(h.keys) }

// Each calls fn for every field in insertion order.
func (h *Header) Each(fn func(key, value string)) {
	for _, k := range h.keys {
		for _, v := range h.values[k] {
			fn(k, v)
		}
	}
}

// Clone returns a deep copy.
func (h *Header) Clone() Header {
	out := NewHeader()
	h.Each(out.Add)
	return out
}

// Request is an inbound resource request intercepted for a custom scheme.
// It is owned by the adapter for the duration of the handler call and must
// not be retained afterward.
type Request struct {
	Method string
	URL    string
	Header Header
	Body   []byte
}

// Response is the application-supplied reply to a Request. Either Body or
// Stream carries the payload; Stream wins when both are set and is closed
// by the adapter after the native request is finished.
type Response struct {
	Status int
	Header Header
	Body   []byte
	Stream io.ReadCloser
}

// payload drains the response body, preferring the stream form.
func (r *Response) payload() ([]byte, error) {
	if r.Stream != nil {
		defer r.Stream.Close()
		return io.ReadAll(r.Stream)
	}
	return r.Body, nil
}

// errorResponse builds the well-formed non-2xx reply used when a handler
// fails or no handler matches.
func errorResponse(status int, detail string) *Response {
	resp := &Response{
		Status: status,
		Header: NewHeader(),
		Body:   []byte(fmt.Sprintf("%d: %s", status, detail)),
	}
	resp.Header.Set("Content-Type", "text/plain")
	return resp
}
