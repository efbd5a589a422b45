package cryptoframe

// Options controls how Frame/Unframe wrap an object payload. The commands
// build it from the crypto section of the configuration file.
type Options struct {
	Compress bool

	// Encrypt, when true, seals the frame to PublicKey. PrivateKey is only
	// needed by Unframe, and only when Encrypt is true.
	Encrypt    bool
	PublicKey  *[32]byte
	PrivateKey *[32]byte
}

// Frame turns a plaintext payload into the bytes that get uploaded:
// compress(payload) then encrypt(...), each step applied only if enabled.
func Frame(payload []byte, opts Options) ([]byte, error) {
	out := payload

	if opts.Compress {
		compressed, err := Compress(out)
		if err != nil {
			return nil, err
		}
		out = compressed
	}

	if opts.Encrypt {
		sealed, err := SealAnonymous(out, opts.PublicKey)
		if err != nil {
			return nil, err
		}
		out = sealed
	}

	return out, nil
}

// Unframe reverses Frame: decrypt(bytes) then decompress(...), auto-detecting
// compression regardless of whether the Compress flag is set, since objects
// written under different historical settings may coexist in one
// repository.
func Unframe(data []byte, opts Options) ([]byte, error) {
	out := data

	if opts.Encrypt {
		opened, err := OpenAnonymous(out, opts.PublicKey, opts.PrivateKey)
		if err != nil {
			return nil, err
		}
		out = opened
	}

	return DecompressAuto(out)
}
