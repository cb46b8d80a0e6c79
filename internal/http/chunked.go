package http

import (
	"errors"
	"io"

	"github.com/quetzal-org/quetzal-client/internal/constants"
)

// ChunkReader pulls its source in chunks of at most ChunkSize bytes. A
// source is only read when the previous chunk has been consumed, so a large
// upload never sits in memory at once.
type ChunkReader struct {
	source    io.Reader
	chunkSize int
	buf       []byte
	pending   []byte
	done      bool
}

// NewChunkReader wraps source. A non-positive chunkSize means 32 MiB.
func NewChunkReader(source io.Reader, chunkSize int) *ChunkReader {
	if chunkSize <= 0 {
		chunkSize = constants.UploadChunkSize
	}

	return &ChunkReader{
		source:    source,
		chunkSize: chunkSize,
	}
}

// NextChunk returns the next chunk of the source. An empty chunk means the
// source is exhausted. The slice is only valid until the next call.
func (r *ChunkReader) NextChunk() ([]byte, error) {
	if r.done {
		return nil, nil
	}

	if r.buf == nil {
		r.buf = make([]byte, r.chunkSize)
	}

	n, err := io.ReadFull(r.source, r.buf)

	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		if n == 0 {
			r.done = true
		}
	case err != nil:
		return nil, err
	}

	return r.buf[:n], nil
}

// Read implements io.Reader on top of NextChunk.
func (r *ChunkReader) Read(p []byte) (int, error) {
	for len(r.pending) == 0 {
		chunk, err := r.NextChunk()
		if err != nil {
			return 0, err
		}

		if len(chunk) == 0 {
			return 0, io.EOF
		}

		r.pending = chunk
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]

	return n, nil
}

// chunkedBody keeps the Close of the original request body.
type chunkedBody struct {
	*ChunkReader
	closer io.Closer
}

func (b chunkedBody) Close() error {
	return b.closer.Close()
}
