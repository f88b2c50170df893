// Package stream converts raw byte chunks from a streaming response body into
// text fragments composed of complete UTF-8 sequences.
package stream

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder incrementally decodes UTF-8 text. A multi-byte sequence split
// across two chunks is carried over so a code point is never emitted
// corrupted because of a chunk boundary.
type Decoder struct {
	t     transform.Transformer
	carry []byte
	dst   []byte
}

// NewDecoder creates a streaming UTF-8 decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		t:   unicode.UTF8.NewDecoder(),
		dst: make([]byte, 4096),
	}
}

// Decode consumes one raw chunk and returns the decoded fragment. The
// fragment may be empty when the chunk only contains part of a multi-byte
// sequence; callers suppress empty fragments.
func (d *Decoder) Decode(chunk []byte) (string, error) {
	return d.decode(chunk, false)
}

// Flush decodes any buffered trailing bytes in final mode. The producer
// guarantees no partial sequence remains at true end-of-stream, so an
// incomplete trailing sequence is no longer held back.
func (d *Decoder) Flush() (string, error) {
	return d.decode(nil, true)
}

func (d *Decoder) decode(chunk []byte, atEOF bool) (string, error) {
	src := chunk
	if len(d.carry) > 0 {
		src = append(d.carry, chunk...)
		d.carry = nil
	}

	var out []byte
	for {
		nDst, nSrc, err := d.t.Transform(d.dst, src, atEOF)
		out = append(out, d.dst[:nDst]...)
		src = src[nSrc:]

		switch err {
		case nil:
			return string(out), nil
		case transform.ErrShortDst:
			continue
		case transform.ErrShortSrc:
			// Trailing partial sequence; keep it for the next chunk.
			d.carry = append([]byte(nil), src...)
			return string(out), nil
		default:
			return string(out), err
		}
	}
}
