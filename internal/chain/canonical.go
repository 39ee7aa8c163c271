package chain

import (
	"bytes"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// The canonical form matches Python's json.dumps(obj, sort_keys=True) with
// default separators and ensure_ascii, which is what existing ledger files
// were hashed with. Keys below are written in sorted order by hand.

// Canonical returns the canonical serialization of b.
func (b Block) Canonical() []byte {
	var buf bytes.Buffer
	writeBlock(&buf, b)
	return buf.Bytes()
}

// Canonical returns the canonical serialization of v.
func (v Vote) Canonical() []byte {
	var buf bytes.Buffer
	writeVote(&buf, v)
	return buf.Bytes()
}

// CanonicalChain returns the canonical serialization of blocks as a JSON list.
func CanonicalChain(blocks []Block) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, b := range blocks {
		if i > 0 {
			buf.WriteString(", ")
		}
		writeBlock(&buf, b)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

func writeBlock(buf *bytes.Buffer, b Block) {
	buf.WriteString(`{"index": `)
	buf.WriteString(strconv.FormatInt(b.Index, 10))
	buf.WriteString(`, "previous_hash": `)
	writeString(buf, b.PreviousHash)
	buf.WriteString(`, "proof": `)
	buf.WriteString(strconv.FormatInt(b.Proof, 10))
	buf.WriteString(`, "timestamp": `)
	buf.WriteString(formatFloat(float64(b.Timestamp)))
	buf.WriteString(`, "votes": [`)
	for i, v := range b.Votes {
		if i > 0 {
			buf.WriteString(", ")
		}
		writeVote(buf, v)
	}
	buf.WriteString("]}")
}

func writeVote(buf *bytes.Buffer, v Vote) {
	buf.WriteString(`{"candidate_id": `)
	writeString(buf, v.CandidateID)
	buf.WriteString(`, "timestamp": `)
	buf.WriteString(formatFloat(float64(v.Timestamp)))
	buf.WriteString(`, "voter_id": `)
	writeString(buf, v.VoterID)
	buf.WriteByte('}')
}

const hexDigits = "0123456789abcdef"

// writeString writes s as an ASCII-only JSON string literal.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r < 0x20 || (r >= 0x7f && r <= 0xffff):
				writeUnicodeEscape(buf, r)
			case r > 0xffff:
				r1, r2 := surrogates(r)
				writeUnicodeEscape(buf, r1)
				writeUnicodeEscape(buf, r2)
			default:
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

func writeUnicodeEscape(buf *bytes.Buffer, r rune) {
	buf.WriteString(`\u`)
	buf.WriteByte(hexDigits[(r>>12)&0xf])
	buf.WriteByte(hexDigits[(r>>8)&0xf])
	buf.WriteByte(hexDigits[(r>>4)&0xf])
	buf.WriteByte(hexDigits[r&0xf])
}

func surrogates(r rune) (rune, rune) {
	if r > utf8.MaxRune {
		r = utf8.RuneError
	}
	r -= 0x10000
	return 0xd800 + (r>>10)&0x3ff, 0xdc00 + r&0x3ff
}

// formatFloat renders f the way Python's float repr does: shortest
// round-trip digits, fixed notation when the decimal exponent is in
// [-4, 16), scientific otherwise, and always a fractional part in fixed
// notation.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}

	// 'e' with precision -1 yields the shortest digits: "-d.ddddde±XX".
	s := strconv.FormatFloat(f, 'e', -1, 64)
	sign := ""
	if s[0] == '-' {
		sign, s = "-", s[1:]
	}
	mant, expStr, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(expStr)
	digits := strings.Replace(mant, ".", "", 1)
	decpt := exp + 1

	if decpt > 16 || decpt < -3 {
		out := digits[:1]
		if len(digits) > 1 {
			out += "." + digits[1:]
		}
		expSign := "+"
		if exp < 0 {
			expSign, exp = "-", -exp
		}
		e := strconv.Itoa(exp)
		if len(e) < 2 {
			e = "0" + e
		}
		return sign + out + "e" + expSign + e
	}

	switch {
	case decpt <= 0:
		return sign + "0." + strings.Repeat("0", -decpt) + digits
	case decpt >= len(digits):
		return sign + digits + strings.Repeat("0", decpt-len(digits)) + ".0"
	default:
		return sign + digits[:decpt] + "." + digits[decpt:]
	}
}
