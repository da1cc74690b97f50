package tvopts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want Options
	}{
		{name: "empty", spec: "", want: Options{}},
		{name: "flags", spec: "cancel:nuke", want: Options{"cancel": "y", "nuke": "y"}},
		{name: "seek back number", spec: "<100", want: Options{"seekbefore": "100"}},
		{name: "seek back turn", spec: "<T500", want: Options{"seekbefore": "T500"}},
		{name: "seek after end", spec: ">$", want: Options{"seekafter": "$"}},
		{name: "seek after decimal", spec: ">-2.5", want: Options{"seekafter": "-2.5"}},
		{name: "bare turn", spec: "T1200", want: Options{"seekafter": "t1200"}},
		{name: "speed", spec: "x2", want: Options{"playback_speed": "2"}},
		{name: "speed fraction", spec: "X0.5", want: Options{"playback_speed": "0.5"}},
		{name: "combined", spec: "<10:x1.5:>t+3", want: Options{"seekbefore": "10", "playback_speed": "1.5", "seekafter": "t+3"}},
		{name: "later wins", spec: ">1:t2", want: Options{"seekafter": "t2"}},
		{name: "trailing colon", spec: "x2:", want: Options{"playback_speed": "2"}},
		{name: "padded", spec: "< 10", want: Options{"seekbefore": "10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.spec)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		spec string
		want string
	}{
		{"<$", `Bad seek argument for seek-back: $ (T<turncount> or number expected)`},
		{">abc", `Bad seek argument for seek-after: abc (T<turncount>, number or "$" expected)`},
		{"tx", `Bad seek argument for seek-back: tx (T<turncount> or number expected)`},
		{"x20", "Playback speed must be between 0.1 and 10"},
		{"x0.05", "Playback speed must be between 0.1 and 10"},
		{"xfast", "Playback speed must be between 0.1 and 10"},
		{"zoom", "Unrecognised TV option: zoom"},
	}
	for _, tt := range tests {
		_, err := Parse(tt.spec)
		require.EqualError(t, err, tt.want, tt.spec)
	}
}

func TestParseArgsAndMerge(t *testing.T) {
	opts, err := ParseArgs("x3", true, false)
	require.NoError(t, err)
	require.Equal(t, Options{"playback_speed": "3", "cancel": "y"}, opts)

	fields := map[string]string{"name": "foo", "playback_speed": "1"}
	opts.Merge(fields)
	require.Equal(t, map[string]string{"name": "foo", "playback_speed": "3", "cancel": "y"}, fields)

	_, err = ParseArgs("bogus", false, true)
	require.Error(t, err)
}
