package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/agentchat/agentchat-go/internal/stream"
)

// Stream is a lazy, finite, non-restartable sequence of decoded text
// fragments from one streaming send.
type Stream interface {
	// Recv returns the next non-empty fragment. io.EOF signals a clean end
	// of stream; any other error is terminal for this stream.
	Recv() (string, error)
	Close() error
}

// OpenMessageStream opens the chunked streaming send endpoint for one
// conversation + payload. The response body is read incrementally, never
// buffered whole. A non-success status fails before any fragment is
// produced, with the full error body folded into the returned error.
func (c *Client) OpenMessageStream(ctx context.Context, conversationID string, payload MessageCreate) (Stream, error) {
	path := "/api/conversations/" + conversationID + "/messages/stream"
	req, err := c.newRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Message: "open message stream", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, c.errorFromResponse(resp)
	}

	return &messageStream{
		body: resp.Body,
		dec:  stream.NewDecoder(),
		buf:  make([]byte, 4096),
	}, nil
}

type messageStream struct {
	body io.ReadCloser
	dec  *stream.Decoder
	buf  []byte
	done bool
}

func (s *messageStream) Recv() (string, error) {
	for !s.done {
		n, err := s.body.Read(s.buf)

		var frag string
		if n > 0 {
			f, derr := s.dec.Decode(s.buf[:n])
			if derr != nil {
				s.done = true
				return "", &Error{Kind: KindTransport, Message: "decode stream chunk", Cause: derr}
			}
			frag = f
		}

		switch {
		case err == nil:
			if frag != "" {
				return frag, nil
			}
			// Chunk only completed part of a multi-byte sequence; empty
			// fragments are suppressed, not forwarded.
		case errors.Is(err, io.EOF):
			s.done = true
			tail, derr := s.dec.Flush()
			if derr != nil {
				return "", &Error{Kind: KindTransport, Message: "flush stream decoder", Cause: derr}
			}
			if frag+tail != "" {
				return frag + tail, nil
			}
			return "", io.EOF
		default:
			s.done = true
			return "", &Error{Kind: KindTransport, Message: "read stream", Cause: err}
		}
	}
	return "", io.EOF
}

func (s *messageStream) Close() error {
	s.done = true
	return s.body.Close()
}
