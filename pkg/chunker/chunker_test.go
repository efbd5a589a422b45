package chunker

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitEmptyReader(t *testing.T) {
	chunks, err := Split(bytes.NewReader(nil))
	require.NoError(t, err)
	require.Empty(t, chunks)
}

func TestSplitSmallerThanOneChunk(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 1000)
	chunks, err := Split(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, int64(0), chunks[0].Offset)
	require.Equal(t, data, chunks[0].Data)
}

func TestSplitExactlyOneChunk(t *testing.T) {
	data := bytes.Repeat([]byte{0x01}, ChunkSize)
	chunks, err := Split(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0].Data, ChunkSize)
}

func TestSplitMultipleChunksWithRemainder(t *testing.T) {
	data := bytes.Repeat([]byte{0x02}, ChunkSize*2+1000)
	chunks, err := Split(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0].Data, ChunkSize)
	require.Equal(t, int64(0), chunks[0].Offset)
	require.Len(t, chunks[1].Data, ChunkSize)
	require.Equal(t, int64(ChunkSize), chunks[1].Offset)
	require.Len(t, chunks[2].Data, 1000)
	require.Equal(t, int64(ChunkSize*2), chunks[2].Offset)

	var reassembled []byte
	for _, c := range chunks {
		reassembled = append(reassembled, c.Data...)
	}
	require.Equal(t, data, reassembled)
}

type failingReader struct {
	n   int
	err error
}

func (f *failingReader) Read(p []byte) (int, error) {
	return f.n, f.err
}

func TestNextPropagatesReadError(t *testing.T) {
	boom := errors.New("disk yanked mid-read")
	c := New(&failingReader{n: 0, err: boom})
	_, err := c.Next()
	require.ErrorIs(t, err, boom)
}

func TestNextReturnsEOFAfterExhaustion(t *testing.T) {
	c := New(bytes.NewReader([]byte("short")))

	chunk, err := c.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("short"), chunk.Data)

	_, err = c.Next()
	require.ErrorIs(t, err, io.EOF)
}

func TestInlineThresholdLargerThanChunkSize(t *testing.T) {
	require.Greater(t, InlineThreshold, ChunkSize)
}
