// Package tvopts parses the playback options a viewer attaches to a game
// announcement ("<10:x2", "t500", "nuke" and so on) into payload fields.
package tvopts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	KeyCancel        = "cancel"
	KeyNuke          = "nuke"
	KeySeekBefore    = "seekbefore"
	KeySeekAfter     = "seekafter"
	KeyPlaybackSpeed = "playback_speed"

	flagValue = "y"

	minSpeed = 0.1
	maxSpeed = 10
)

var (
	turnSeek   = regexp.MustCompile(`(?i)^t[+-]?\d+$`)
	numberSeek = regexp.MustCompile(`^[-+]?\d+(\.\d+)?$`)
)

// Options holds parsed fields keyed by their payload name.
type Options map[string]string

// Parse reads a colon-separated option string. Later tokens overwrite earlier
// ones for the same key. Empty tokens are ignored.
func Parse(spec string) (Options, error) {
	out := Options{}
	for _, tok := range strings.Split(spec, ":") {
		if tok == "" {
			continue
		}
		if err := parseToken(out, tok); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ParseArgs combines the --tv spec with the standalone cancel and nuke flags.
func ParseArgs(spec string, cancel, nuke bool) (Options, error) {
	out, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	if cancel {
		out[KeyCancel] = flagValue
	}
	if nuke {
		out[KeyNuke] = flagValue
	}
	return out, nil
}

// Merge copies the options into fields, overwriting existing keys.
func (o Options) Merge(fields map[string]string) {
	for k, v := range o {
		fields[k] = v
	}
}

func parseToken(out Options, tok string) error {
	if tok == KeyCancel || tok == KeyNuke {
		out[tok] = flagValue
		return nil
	}
	prefix := strings.ToLower(tok[:1])
	rest := strings.TrimSpace(tok[1:])
	switch prefix {
	case "<":
		v, err := seekArg("seek-back", rest, false)
		if err != nil {
			return err
		}
		out[KeySeekBefore] = v
	case ">":
		v, err := seekArg("seek-after", rest, true)
		if err != nil {
			return err
		}
		out[KeySeekAfter] = v
	case "t":
		// Bare turn counts are validated like a seek-back argument.
		v, err := seekArg("seek-back", prefix+rest, false)
		if err != nil {
			return err
		}
		out[KeySeekAfter] = v
	case "x":
		v, err := playbackSpeed(rest)
		if err != nil {
			return err
		}
		out[KeyPlaybackSpeed] = v
	default:
		return fmt.Errorf("Unrecognised TV option: %s", tok)
	}
	return nil
}

func seekArg(name, num string, allowEnd bool) (string, error) {
	if turnSeek.MatchString(num) || numberSeek.MatchString(num) || (allowEnd && num == "$") {
		return num, nil
	}
	expected := "T<turncount> or number"
	if allowEnd {
		expected = `T<turncount>, number or "$"`
	}
	return "", fmt.Errorf("Bad seek argument for %s: %s (%s expected)", name, num, expected)
}

func playbackSpeed(s string) (string, error) {
	speed := leadingFloat(s)
	if speed < minSpeed || speed > maxSpeed {
		return "", fmt.Errorf("Playback speed must be between %g and %g", float64(minSpeed), float64(maxSpeed))
	}
	return strconv.FormatFloat(speed, 'f', -1, 64), nil
}

// leadingFloat parses the longest numeric prefix of s, or 0 if there is none.
func leadingFloat(s string) float64 {
	end := 0
	seenDot := false
scan:
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			end = i + 1
		case c == '.' && !seenDot:
			seenDot = true
		case (c == '+' || c == '-') && i == 0:
		default:
			break scan
		}
	}
	if end == 0 {
		return 0
	}
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0
	}
	return f
}
