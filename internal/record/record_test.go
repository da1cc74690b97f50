package record

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestParseVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		line    string
		ts      int64
		payload string
		wantErr bool
	}{
		{name: "plain", line: "1001 gameB", ts: 1001, payload: "gameB"},
		{name: "newline", line: "1001 gameB\n", ts: 1001, payload: "gameB"},
		{name: "crlf keeps cr", line: "1001 gameB\r\n", ts: 1001, payload: "gameB\r"},
		{name: "leading zeros", line: "0001001 x", ts: 1001, payload: "x"},
		{name: "overflow saturates", line: "99999999999999999999 huge", ts: math.MaxInt64, payload: "huge"},
		{name: "empty payload", line: "1001 ", ts: 1001, payload: ""},
		{name: "payload with spaces", line: "7 name=a b:x=1", ts: 7, payload: "name=a b:x=1"},
		{name: "no space", line: "1001", wantErr: true},
		{name: "leading space", line: " 1001 x", wantErr: true},
		{name: "signed", line: "-5 x", wantErr: true},
		{name: "letters", line: "12a x", wantErr: true},
		{name: "empty", line: "", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformed) {
					t.Fatalf("Parse(%q) err = %v, want ErrMalformed", tt.line, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.line, err)
			}
			if got.Timestamp != tt.ts || got.Payload != tt.payload {
				t.Fatalf("Parse(%q) = %+v", tt.line, got)
			}
		})
	}
}

func TestStringMatchesParse(t *testing.T) {
	t.Parallel()
	r := New(time.Unix(1700000000, 0), "name=foo")
	if got := r.String(); got != "1700000000 name=foo" {
		t.Fatalf("String() = %q", got)
	}
	back, err := Parse(r.String())
	if err != nil || back.Timestamp != r.Timestamp || back.Payload != r.Payload || back.String() != r.String() {
		t.Fatalf("Parse(String()) = %+v, %v", back, err)
	}
	if !r.Time().Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("Time() = %v", r.Time())
	}
}

func TestEncodeFieldsEscapesColons(t *testing.T) {
	t.Parallel()
	got := EncodeFields(map[string]string{"name": "foo", "req": "bar", "seekafter": "t:1"})
	if want := "name=foo:req=bar:seekafter=t::1"; got != want {
		t.Fatalf("EncodeFields = %q, want %q", got, want)
	}
	dec := DecodeFields(got)
	if dec["seekafter"] != "t:1" || dec["name"] != "foo" || dec["req"] != "bar" || len(dec) != 3 {
		t.Fatalf("DecodeFields = %v", dec)
	}
}

func TestDecodeFieldsEmpty(t *testing.T) {
	t.Parallel()
	if got := DecodeFields(""); len(got) != 0 {
		t.Fatalf("DecodeFields(\"\") = %v", got)
	}
	if got := DecodeFields("cancel"); got["cancel"] != "" || len(got) != 1 {
		t.Fatalf("DecodeFields(cancel) = %v", got)
	}
}

func TestParsedRecordRendersVerbatim(t *testing.T) {
	t.Parallel()
	for _, line := range []string{
		"0001001 zeros",
		"1002 tail\r",
		"99999999999999999999 huge",
		"1003 ",
	} {
		r, err := Parse(line + "\n")
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", line, err)
		}
		if got := r.String(); got != line {
			t.Fatalf("String() = %q, want %q", got, line)
		}
	}
}

func TestBefore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		line   string
		start  int64
		before bool
	}{
		{"999 a", 1000, true},
		{"1000 a", 1000, false},
		{"1001 a", 1000, false},
		{"0000999 a", 1000, true},
		{"0001000 a", 1000, false},
		{"99999999999999999999 a", 1700000000, false},
		{"0 a", 0, false},
		{"000 a", 1, true},
	}
	for _, tt := range tests {
		r, err := Parse(tt.line)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tt.line, err)
		}
		if got := r.Before(tt.start); got != tt.before {
			t.Fatalf("%q.Before(%d) = %v, want %v", tt.line, tt.start, got, tt.before)
		}
	}
}
