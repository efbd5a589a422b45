// Package cryptoframe implements coldvault's outbound/inbound object
// framing: optional deflate-style compression with auto-detection on read,
// and optional NaCl sealed-box encryption with a password-wrapped private
// key recovery object, per spec.md §4.2.
package cryptoframe

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// zlibMagic is the first byte of every zlib stream produced with a default
// compression-method/window-size header (CMF=0x78). Plaintext payloads are
// msgpack arrays and begin with an array header (fixarray, 0x90-0x9F),
// which never collides with this byte, so detection on read is unambiguous.
const zlibMagic = 0x78

// Compress wraps payload in a zlib stream.
func Compress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(payload); err != nil {
		return nil, fmt.Errorf("cryptoframe: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("cryptoframe: compress: %w", err)
	}
	return buf.Bytes(), nil
}

// DecompressAuto inspects the first byte of data: if it is the zlib magic
// byte, the stream is inflated; otherwise data is returned unchanged. This
// lets compressed and uncompressed objects coexist in the same repository.
func DecompressAuto(data []byte) ([]byte, error) {
	if len(data) == 0 || data[0] != zlibMagic {
		return data, nil
	}

	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		// A payload that merely happens to start with 0x78 without being a
		// valid zlib stream is a caller bug, not an expected case, but we
		// don't want to misclassify it as plaintext either.
		return nil, fmt.Errorf("cryptoframe: decompress: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("cryptoframe: decompress: %w", err)
	}
	return out, nil
}
