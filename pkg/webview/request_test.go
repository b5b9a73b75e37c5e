package webview

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_CaseInsensitiveKeys(t *testing.T) {
	h := NewHeader()
	h.Set("content-type", "text/html")

	assert.Equal(t, "text/html", h.Get("Content-Type"))
	assert.Equal(t, "text/html", h.Get("CONTENT-TYPE"))

	h.Set("Content-Type", "application/json")
	assert.Equal(t, "application/json", h.Get("content-type"))
	assert.Equal(t, 1, h.Len(), "same key in different casing must not duplicate")
}

func TestHeader_PreservesInsertionOrder(t *testing.T) {
	h := NewHeader()
	h.Set("X-First", "1")
	h.Set("X-Second", "2")
	h.Add("X-First", "1b")
	h.Set("X-Third", "3")

	var keys []string
	h.Each(func(k, _ string) { keys = append(keys, k) })
	assert.Equal(t, []string{"X-First", "X-First", "X-Second", "X-Third"}, keys)
}

func TestHeader_AddAndValues(t *testing.T) {
	h := NewHeader()
	h.Add("Set-Cookie", "a=1")
	h.Add("Set-Cookie", "b=2")

	assert.Equal(t, "a=1", h.Get("Set-Cookie"))
	assert.Equal(t, []string{"a=1", "b=2"}, h.Values("set-cookie"))
}

func TestHeader_CloneIsDeep(t *testing.T) {
	h := NewHeader()
	h.Set("X-Original", "yes")

	c := h.Clone()
	c.Set("X-Original", "no")
	c.Set("X-Extra", "added")

	assert.Equal(t, "yes", h.Get("X-Original"))
	assert.Empty(t, h.Get("X-Extra"))
}

func TestHeader_ZeroValueUsable(t *testing.T) {
	var h Header
	assert.Empty(t, h.Get("Anything"))
	assert.Nil(t, h.Values("Anything"))

	h.Set("X-Late", "works")
	assert.Equal(t, "works", h.Get("X-Late"))
}

func TestResponse_PayloadPrefersStream(t *testing.T) {
	rc := &trackingReadCloser{Reader: strings.NewReader("streamed")}
	resp := &Response{
		Status: 200,
		Header: NewHeader(),
		Body:   []byte("inline"),
		Stream: rc,
	}

	payload, err := resp.payload()
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(payload))
	assert.True(t, rc.closed, "stream must be closed after draining")
}

func TestResponse_PayloadStreamError(t *testing.T) {
	boom := errors.New("read failed")
	resp := &Response{
		Status: 200,
		Header: NewHeader(),
		Stream: &trackingReadCloser{Reader: failingReader{err: boom}},
	}

	_, err := resp.payload()
	require.ErrorIs(t, err, boom)
}

func TestErrorResponse_Shape(t *testing.T) {
	resp := errorResponse(404, "no handler for scheme app")
	assert.Equal(t, 404, resp.Status)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "404: no handler for scheme app", string(resp.Body))
}

type trackingReadCloser struct {
	io.Reader
	closed bool
}

func (t *trackingReadCloser) Close() error {
	t.closed = true
	return nil
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }
