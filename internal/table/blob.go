package table

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"

	"fusor/internal/errors"
)

const (
	// FormatVersion changes whenever the layout of Tables changes.
	FormatVersion uint16 = 1
	// ABIVersion changes whenever the external scanner contract changes.
	ABIVersion uint16 = 1
)

var magic = [4]byte{'F', 'U', 'S', 'R'}

type header struct {
	Magic  [4]byte
	Format uint16
	ABI    uint16
	Digest [32]byte
}

// Encode writes the language as a versioned blob.
func Encode(w io.Writer, l *Language) error {
	h := header{Magic: magic, Format: FormatVersion, ABI: ABIVersion, Digest: l.t.Digest}
	if err := binary.Write(w, binary.LittleEndian, h); err != nil {
		return fmt.Errorf("writing blob header: %w", err)
	}
	if err := gob.NewEncoder(w).Encode(l.t); err != nil {
		return fmt.Errorf("writing tables: %w", err)
	}
	return nil
}

// EncodeBytes is Encode into memory.
func EncodeBytes(l *Language) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, l); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a blob written by Encode. Blobs from another format or ABI
// version are rejected with errors.ErrIncompatibleBlob.
func Decode(r io.Reader) (*Language, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("reading blob header: %w", err)
	}
	if h.Magic != magic {
		return nil, fmt.Errorf("%w: bad magic %q", errors.ErrIncompatibleBlob, h.Magic[:])
	}
	if h.Format != FormatVersion || h.ABI != ABIVersion {
		return nil, fmt.Errorf("%w: format %d abi %d, want format %d abi %d",
			errors.ErrIncompatibleBlob, h.Format, h.ABI, FormatVersion, ABIVersion)
	}
	var t Tables
	if err := gob.NewDecoder(r).Decode(&t); err != nil {
		return nil, fmt.Errorf("reading tables: %w", err)
	}
	if t.Digest != h.Digest {
		return nil, fmt.Errorf("%w: digest mismatch", errors.ErrIncompatibleBlob)
	}
	if len(t.ActionIndex) != t.StateCount*t.TerminalCount || len(t.Goto) != t.StateCount*(t.SymbolCount-t.TerminalCount) {
		return nil, fmt.Errorf("%w: table sizes do not match", errors.ErrIncompatibleBlob)
	}
	return newLanguage(&t), nil
}

// DecodeBytes is Decode from memory.
func DecodeBytes(b []byte) (*Language, error) {
	return Decode(bytes.NewReader(b))
}

// PeekDigest returns the grammar digest of a blob without decoding it.
func PeekDigest(b []byte) ([32]byte, error) {
	var h header
	if err := binary.Read(bytes.NewReader(b), binary.LittleEndian, &h); err != nil {
		return [32]byte{}, fmt.Errorf("reading blob header: %w", err)
	}
	if h.Magic != magic {
		return [32]byte{}, fmt.Errorf("%w: bad magic", errors.ErrIncompatibleBlob)
	}
	return h.Digest, nil
}
