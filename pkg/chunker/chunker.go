// Package chunker implements coldvault's fixed-size file splitter (spec.md
// §4.5). It has no content-defined boundaries and no rolling hash: a file is
// simply read CHUNK_SIZE bytes at a time until EOF, matching backathon's
// FixedChunker. Files below InlineThreshold skip the chunker entirely and
// are folded into the inode payload by the backup pipeline.
package chunker

import (
	"io"
)

// ============================================================================
// Size Constants
// ============================================================================

const (
	// ChunkSize is the amount of file data read per chunk (1 MiB).
	ChunkSize = 1 << 20

	// InlineThreshold is the file size below which contents are embedded
	// directly in the inode payload instead of being split into chunks.
	InlineThreshold = 2 << 20
)

// Chunk is one (offset, bytes) pair produced while reading a file.
type Chunk struct {
	Offset int64
	Data   []byte
}

// Chunker reads fixed-size chunks from a file in order, starting at offset
// 0. It does not seek; callers get chunks in read order only.
type Chunker struct {
	r      io.Reader
	pos    int64
	buf    []byte
	closed bool
}

// New returns a Chunker reading from r.
func New(r io.Reader) *Chunker {
	return &Chunker{r: r, buf: make([]byte, ChunkSize)}
}

// Next reads and returns the next chunk. It returns io.EOF (with a zero
// Chunk) once r is exhausted, and any other error verbatim so the backup
// pipeline can treat a mid-read failure as a vanished-entry condition
// (spec.md §4.6) rather than retrying.
func (c *Chunker) Next() (Chunk, error) {
	if c.closed {
		return Chunk{}, io.EOF
	}

	n, err := io.ReadFull(c.r, c.buf)
	switch {
	case err == nil:
		data := make([]byte, n)
		copy(data, c.buf[:n])
		offset := c.pos
		c.pos += int64(n)
		return Chunk{Offset: offset, Data: data}, nil

	case err == io.ErrUnexpectedEOF:
		// Final short chunk: still real data, but the next call must EOF.
		c.closed = true
		data := make([]byte, n)
		copy(data, c.buf[:n])
		offset := c.pos
		c.pos += int64(n)
		return Chunk{Offset: offset, Data: data}, nil

	case err == io.EOF:
		c.closed = true
		return Chunk{}, io.EOF

	default:
		return Chunk{}, err
	}
}

// Split reads r to completion and returns every chunk. It exists for
// callers (tests, small-scale tooling) that would rather have the whole
// slice than drive Next() themselves; the backup pipeline uses Next()
// directly so it can push each blob as it's produced instead of holding
// the whole file in memory.
func Split(r io.Reader) ([]Chunk, error) {
	c := New(r)
	var chunks []Chunk
	for {
		chunk, err := c.Next()
		if err == io.EOF {
			return chunks, nil
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
}
