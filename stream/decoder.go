package stream

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Decoder converts raw byte chunks to text incrementally. A multi-byte
// character split across chunk boundaries is held back until the bytes that
// complete it arrive, so the decoded output never depends on where the
// transport happened to cut the stream.
type Decoder struct {
	pending [utf8.UTFMax]byte
	n       int
}

// Decode appends chunk to any held-back bytes and returns the decoded text.
// At most utf8.UTFMax-1 trailing bytes of an incomplete character are
// retained for the next call. Invalid sequences that are unambiguously
// complete decode to the Unicode replacement character.
func (d *Decoder) Decode(chunk []byte) string {
	if len(chunk) == 0 {
		return ""
	}

	buf := make([]byte, 0, d.n+len(chunk))
	buf = append(buf, d.pending[:d.n]...)
	buf = append(buf, chunk...)
	d.n = 0

	if keep := incompleteTailLen(buf); keep > 0 {
		copy(d.pending[:], buf[len(buf)-keep:])
		d.n = keep
		buf = buf[:len(buf)-keep]
	}

	if utf8.Valid(buf) {
		return string(buf)
	}
	return strings.ToValidUTF8(string(buf), string(utf8.RuneError))
}

// Flush reports whether the stream ended mid-character. Any retained bytes
// can no longer be completed once the stream is closed.
func (d *Decoder) Flush() error {
	if d.n == 0 {
		return nil
	}
	n := d.n
	d.n = 0
	return &Error{
		Kind: ErrorMalformedEncoding,
		Msg:  fmt.Sprintf("stream ended mid-character with %d undecodable trailing byte(s)", n),
	}
}

// incompleteTailLen returns the number of trailing bytes in buf that begin a
// multi-byte character whose continuation bytes have not arrived yet.
func incompleteTailLen(buf []byte) int {
	n := len(buf)
	for back := 1; back <= utf8.UTFMax-1 && back <= n; back++ {
		b := buf[n-back]
		if b < utf8.RuneSelf {
			return 0
		}
		if b&0xC0 == 0x80 {
			// Continuation byte, keep scanning for the lead.
			continue
		}
		if leadLen(b) > back {
			return back
		}
		return 0
	}
	return 0
}

func leadLen(b byte) int {
	switch {
	case b&0xE0 == 0xC0:
		return 2
	case b&0xF0 == 0xE0:
		return 3
	case b&0xF8 == 0xF0:
		return 4
	default:
		// Invalid lead byte, complete on its own and decoded as U+FFFD.
		return 1
	}
}
