package recorder

import (
	"bufio"
	"io"

	"main/internal/schema"
)

// ReaderOptions controls frame decoding.
type ReaderOptions struct {
	DisableChecksum bool
	MaxPayloadSize  int
}

// Reader decodes journal frames sequentially.
type Reader struct {
	r       *bufio.Reader
	opts    ReaderOptions
	header  []byte
	payload []byte
}

// NewReader wraps an io.Reader with journal decoding.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	return &Reader{
		r:      bufio.NewReader(r),
		opts:   opts,
		header: make([]byte, frameHeaderSize),
	}
}

// Next returns the next frame header and payload.
// The payload slice is reused on the following call.
func (r *Reader) Next() (schema.EventHeader, []byte, error) {
	n, err := io.ReadFull(r.r, r.header)
	if err != nil {
		if err == io.EOF && n == 0 {
			return schema.EventHeader{}, nil, io.EOF
		}
		return schema.EventHeader{}, nil, err
	}

	header, payloadLen, storedCRC, err := decodeFrame(r.header)
	if err != nil {
		return header, nil, err
	}
	if r.opts.MaxPayloadSize > 0 && payloadLen > uint32(r.opts.MaxPayloadSize) {
		return header, nil, ErrInvalidFrameHeader
	}

	if payloadLen > 0 {
		if cap(r.payload) < int(payloadLen) {
			r.payload = make([]byte, payloadLen)
		}
		r.payload = r.payload[:payloadLen]
		if _, err := io.ReadFull(r.r, r.payload); err != nil {
			return header, nil, err
		}
	} else {
		r.payload = r.payload[:0]
	}

	if !r.opts.DisableChecksum {
		if frameChecksum(r.header, r.payload) != storedCRC {
			return header, nil, ErrChecksumMismatch
		}
	}
	return header, r.payload, nil
}
