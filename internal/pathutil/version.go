// Package pathutil holds the pure filename helpers used by the work file
// resolver: version token parsing and latest-version selection.
package pathutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// DefaultMarker is the version prefix used by work files ("shot_v003.nk").
const DefaultMarker = "v"

// ErrNoVersion is returned when a name carries no version token.
var ErrNoVersion = errors.New("no version found")

// Token is a version token extracted from a filename.
type Token struct {
	Prefix string // marker as written in the name, e.g. "v" or "V"
	Number int
	Width  int // digit count including zero padding
	Offset int // byte offset of the marker within the parsed name
}

// String renders the token with its original padding.
func (t Token) String() string {
	return fmt.Sprintf("%s%0*d", t.Prefix, t.Width, t.Number)
}

var (
	patternMu    sync.Mutex
	patternCache = map[string]*regexp.Regexp{}
)

func versionPattern(marker string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[marker]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)[/_.](` + regexp.QuoteMeta(marker) + `)(\d+)`)
	patternCache[marker] = re
	return re
}

// ParseVersion returns the last version token in name. A token is the marker
// preceded by one of "/", "_" or "." and followed by at least one digit.
// Earlier numeric runs such as shot numbers are ignored.
func ParseVersion(name, marker string) (Token, error) {
	if marker == "" {
		marker = DefaultMarker
	}
	matches := versionPattern(marker).FindAllStringSubmatchIndex(name, -1)
	if len(matches) == 0 {
		return Token{}, fmt.Errorf("%q: %w", name, ErrNoVersion)
	}
	m := matches[len(matches)-1]
	digits := name[m[4]:m[5]]
	n, err := strconv.Atoi(digits)
	if err != nil {
		return Token{}, fmt.Errorf("%q: parse version digits: %w", name, err)
	}
	return Token{
		Prefix: name[m[2]:m[3]],
		Number: n,
		Width:  len(digits),
		Offset: m[2],
	}, nil
}

// FormatVersion renders a version number with the marker and padding width,
// e.g. FormatVersion("v", 1, 3) == "v001".
func FormatVersion(marker string, n, width int) string {
	if marker == "" {
		marker = DefaultMarker
	}
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%s%0*d", marker, width, n)
}

// SplitPrefix splits a basename on the first occurrence of marker and
// returns the part before it. Files are grouped as siblings when their
// prefixes and extensions are equal.
//
// The split is on the first occurrence anywhere in the name, so a basename
// that contains the marker before its version token ("village_v002") groups
// under the shorter prefix ("") and may be misgrouped.
func SplitPrefix(basename, marker string) string {
	if marker == "" {
		marker = DefaultMarker
	}
	prefix, _, _ := strings.Cut(basename, marker)
	return prefix
}

// Candidate is a file that shares a work file's prefix and extension.
type Candidate struct {
	Path    string
	Version Token
	Exists  bool
}

// SelectLatest returns the candidate with the greatest version number.
// When several candidates share the greatest number, the last one in
// slice order wins. ok is false for an empty slice.
func SelectLatest(candidates []Candidate) (Candidate, bool) {
	if len(candidates) == 0 {
		return Candidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Version.Number >= best.Version.Number {
			best = c
		}
	}
	return best, true
}

// Ext returns the extension of name without the leading dot.
func Ext(name string) string {
	return strings.TrimPrefix(filepath.Ext(name), ".")
}
