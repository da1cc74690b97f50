// Package record defines the unit carried through the queue file: one
// announced game event, serialized as a single "<timestamp> <payload>" line.
package record

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrMalformed = errors.New("malformed record")

// Record is one queued event. Payload is opaque to the broker; only the
// leading timestamp is interpreted.
type Record struct {
	// Timestamp saturates at math.MaxInt64 for digit runs too long to fit.
	Timestamp int64
	Payload   string

	// stamp is the digit run exactly as read, so a parsed record renders
	// back byte for byte.
	stamp string
}

func New(at time.Time, payload string) Record {
	return Record{Timestamp: at.Unix(), Payload: payload}
}

// String renders the record as a queue line without the trailing newline.
// A parsed record yields the line it was parsed from.
func (r Record) String() string {
	return r.digits() + " " + r.Payload
}

func (r Record) digits() string {
	if r.stamp != "" {
		return r.stamp
	}
	return strconv.FormatInt(r.Timestamp, 10)
}

// Time returns the timestamp as a time.Time.
func (r Record) Time() time.Time { return time.Unix(r.Timestamp, 0) }

// Before reports whether the record is stamped earlier than ts. It compares
// the digits themselves, so stamps longer than int64 still order correctly.
func (r Record) Before(ts int64) bool {
	if ts < 0 {
		return false
	}
	got := strings.TrimLeft(r.digits(), "0")
	want := strconv.FormatInt(ts, 10)
	if want == "0" {
		want = ""
	}
	if len(got) != len(want) {
		return len(got) < len(want)
	}
	return got < want
}

// Parse reads a queue line. A valid line is one or more ASCII digits, a single
// space, then anything (possibly empty). One trailing newline, if present, is
// stripped; everything else, including a carriage return, is payload.
func Parse(line string) (Record, error) {
	line = strings.TrimSuffix(line, "\n")
	sp := strings.IndexByte(line, ' ')
	if sp <= 0 {
		return Record{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
	digits := line[:sp]
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Record{}, fmt.Errorf("%w: %q", ErrMalformed, line)
		}
	}
	ts, err := strconv.ParseInt(digits, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		ts = math.MaxInt64
	} else if err != nil {
		return Record{}, fmt.Errorf("%w: %q: %v", ErrMalformed, line, err)
	}
	return Record{Timestamp: ts, Payload: line[sp+1:], stamp: digits}, nil
}

// EncodeFields renders a field map as a payload: key=value pairs joined by
// ':' in key order, with any ':' inside keys or values doubled.
func EncodeFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(escapeField(k))
		b.WriteByte('=')
		b.WriteString(escapeField(fields[k]))
	}
	return b.String()
}

// DecodeFields reverses EncodeFields. Pairs without '=' are returned with an
// empty value.
func DecodeFields(payload string) map[string]string {
	out := map[string]string{}
	if payload == "" {
		return out
	}
	var cur strings.Builder
	flush := func() {
		pair := cur.String()
		cur.Reset()
		if pair == "" {
			return
		}
		k, v, _ := strings.Cut(pair, "=")
		out[k] = v
	}
	for i := 0; i < len(payload); i++ {
		c := payload[i]
		if c != ':' {
			cur.WriteByte(c)
			continue
		}
		if i+1 < len(payload) && payload[i+1] == ':' {
			cur.WriteByte(':')
			i++
			continue
		}
		flush()
	}
	flush()
	return out
}

func escapeField(s string) string {
	return strings.ReplaceAll(s, ":", "::")
}
