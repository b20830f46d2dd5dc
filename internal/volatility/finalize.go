package volatility

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"unicode/utf8"
)

// MaxReportSize is the maximum number of bytes of a report read into memory
const MaxReportSize int64 = 1 << 30 // 1 GiB

// DecodeError reports bytes which are not a valid UTF-8
type DecodeError struct {
	Offset int
	Byte   byte
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid UTF-8 byte 0x%02x at offset %d", e.Byte, e.Offset)
}

// Finalize inspects the report written by volatility module and decides
// about the outcome of the run. Nothing is read from fsys for a non-zero
// exitCode. Reports bigger than limit are truncated to limit bytes, limit
// itself never exceeds MaxReportSize.
func Finalize(fsys fs.FS, name, module string, exitCode int, limit int64) Outcome {
	if limit <= 0 || limit > MaxReportSize {
		limit = MaxReportSize
	}
	o := Outcome{
		Module:   module,
		ExitCode: exitCode,
		Limit:    limit,
	}
	if exitCode != 0 {
		o.Kind = ProcessFailed
		return o
	}

	info, err := fs.Stat(fsys, name)
	if err != nil {
		o.Kind = OutputMissing
		o.Err = err
		return o
	}
	o.Size = info.Size()
	truncated := o.Size > limit

	data, err := readN(fsys, name, min(o.Size, limit))
	if err != nil {
		o.Kind = Unreadable
		o.Err = err
		return o
	}

	text, err := decode(data, truncated)
	if err != nil {
		o.Kind = Unreadable
		o.Err = err
		return o
	}

	o.Kind = Succeeded
	if truncated {
		o.Kind = Truncated
	}
	o.Text = text
	sum := sha256.Sum256([]byte(text))
	o.SHA256 = hex.EncodeToString(sum[:])
	return o
}

// readN reads at most n bytes of a file
func readN(fsys fs.FS, name string, n int64) ([]byte, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	// the file may have shrunk since stat
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return buf[:read], nil
}

// decode returns b as a string if it is a valid UTF-8. A truncated
// buffer may end in the middle of a multi-byte sequence: such a tail is
// dropped instead of failing.
func decode(b []byte, truncated bool) (string, error) {
	if truncated {
		b = trimPartialRune(b)
	}
	if utf8.Valid(b) {
		return string(b), nil
	}
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return "", &DecodeError{Offset: i, Byte: b[i]}
		}
		i += size
	}
	// unreachable for an invalid b
	return "", &DecodeError{Offset: len(b)}
}

func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return b[:i]
		}
		return b
	}
	return b
}
