package pathutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVersionSingleToken(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		number int
		width  int
	}{
		{"shot_v001.nk", "v", 1, 3},
		{"comp_v12.ma", "v", 12, 2},
		{"plate.v0007.exr", "v", 7, 4},
		{"SH010_V003.hip", "V", 3, 3},
		{"/jobs/show/v2", "v", 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := ParseVersion(tt.name, "v")
			if err != nil {
				t.Fatalf("ParseVersion(%q): %v", tt.name, err)
			}
			assert.Equal(t, tt.prefix, tok.Prefix)
			assert.Equal(t, tt.number, tok.Number)
			assert.Equal(t, tt.width, tok.Width)
		})
	}
}

func TestParseVersionNoToken(t *testing.T) {
	for _, name := range []string{"shot.nk", "shot010.nk", "vendor.txt", "shotv001.nk", "_v.nk", ""} {
		_, err := ParseVersion(name, "v")
		if !errors.Is(err, ErrNoVersion) {
			t.Errorf("ParseVersion(%q) error = %v, want ErrNoVersion", name, err)
		}
	}
}

func TestParseVersionPicksLastToken(t *testing.T) {
	tests := map[string]int{
		"shot010_v002.nk":                  2,
		"/proj/v010/shot010_v002.nk":       2,
		"/proj/seq_v09/sh_v3_comp_v014.nk": 14,
		"a_v1.b_v2.c_v3.nk":                3,
	}
	for name, want := range tests {
		tok, err := ParseVersion(name, "v")
		if err != nil {
			t.Fatalf("ParseVersion(%q): %v", name, err)
		}
		if tok.Number != want {
			t.Errorf("ParseVersion(%q) = %d, want %d", name, tok.Number, want)
		}
	}
}

func TestParseVersionDefaultMarker(t *testing.T) {
	tok, err := ParseVersion("shot_v004.nk", "")
	if err != nil {
		t.Fatalf("ParseVersion: %v", err)
	}
	assert.Equal(t, 4, tok.Number)
	assert.Equal(t, "v004", tok.String())
}

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v001", FormatVersion("v", 1, 3))
	assert.Equal(t, "v1234", FormatVersion("v", 1234, 3))
	assert.Equal(t, "v7", FormatVersion("", 7, 0))
}

func TestSplitPrefix(t *testing.T) {
	assert.Equal(t, "shot_", SplitPrefix("shot_v001.nk", "v"))
	assert.Equal(t, "no_marker.nk", SplitPrefix("no_marker.nk", "v"))
	// Marker inside the asset name groups on the earlier occurrence.
	assert.Equal(t, "", SplitPrefix("village_v002.nk", "v"))
}

func TestSelectLatest(t *testing.T) {
	if _, ok := SelectLatest(nil); ok {
		t.Fatal("expected ok=false for no candidates")
	}

	cands := []Candidate{
		{Path: "a_v001.nk", Version: Token{Number: 1}},
		{Path: "a_v007.nk", Version: Token{Number: 7}},
		{Path: "a_v003.nk", Version: Token{Number: 3}},
	}
	got, ok := SelectLatest(cands)
	assert.True(t, ok)
	assert.Equal(t, "a_v007.nk", got.Path)
}

func TestSelectLatestTieLastWins(t *testing.T) {
	cands := []Candidate{
		{Path: "a_v2.nk", Version: Token{Number: 2, Width: 1}},
		{Path: "a_v002.nk", Version: Token{Number: 2, Width: 3}},
		{Path: "a_v1.nk", Version: Token{Number: 1}},
	}
	got, _ := SelectLatest(cands)
	assert.Equal(t, "a_v002.nk", got.Path)
}

func TestExt(t *testing.T) {
	assert.Equal(t, "nk", Ext("/a/b/shot_v001.nk"))
	assert.Equal(t, "", Ext("README"))
}
