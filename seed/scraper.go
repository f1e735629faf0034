package seed

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/normalize"
	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

var DefaultWindows = []int{6, 5, 4, 3}

type fragmentKind int

const (
	kindOther fragmentKind = iota
	kindName
	kindLocation
)

type fragment struct {
	kind     fragmentKind
	name     string
	location uint16
}

// Scraper groups already-rendered social list text into name/location
// candidates. It never asks the host to refresh the surface.
type Scraper struct {
	table   *normalize.LocationTable
	windows []int
}

func NewScraper(table *normalize.LocationTable, windows []int) *Scraper {
	s := &Scraper{table: table}
	s.SetWindows(windows)
	return s
}

func (s *Scraper) SetTable(table *normalize.LocationTable) {
	s.table = table
}

func (s *Scraper) SetWindows(windows []int) {
	s.windows = s.windows[:0]
	for _, w := range windows {
		if w > 0 {
			s.windows = append(s.windows, w)
		}
	}
	if len(s.windows) == 0 {
		s.windows = append(s.windows, DefaultWindows...)
	}
}

func (s *Scraper) Seed(src types.SurfaceReader, surface string, sink Sink) (added int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			added = 0
			err = types.Errorf(types.ErrSeedPanicked, "scrape %s: %v", surface, rec)
		}
	}()

	fragments, ok := src.TextFragments(surface)
	if !ok || len(fragments) == 0 {
		return 0, nil
	}

	for _, c := range s.Extract(fragments) {
		if sink.AddOrTouch(c.Name, c.LocationID, 0) {
			added++
		}
	}

	return added, nil
}

// Extract pairs each name candidate with the nearest following location
// inside a sliding window. Larger windows run first; names left unpaired are
// still returned with an unknown location.
func (s *Scraper) Extract(texts []string) []Candidate {
	frags := make([]fragment, len(texts))
	for i, text := range texts {
		frags[i] = s.classify(text)
	}

	consumed := make([]bool, len(frags))
	paired := make(map[int]uint16)

	for _, size := range s.windows {
		for start := 0; start < len(frags); start++ {
			end := start + size
			if end > len(frags) {
				end = len(frags)
			}

			nameIdx := -1
			for i := start; i < end; i++ {
				if frags[i].kind == kindName && !consumed[i] {
					nameIdx = i
					break
				}
			}
			if nameIdx < 0 {
				continue
			}

			locIdx := -1
			for j := nameIdx + 1; j < end; j++ {
				if frags[j].kind == kindName {
					break
				}
				if frags[j].kind == kindLocation && !consumed[j] {
					locIdx = j
					break
				}
			}
			if locIdx < 0 {
				continue
			}

			consumed[nameIdx] = true
			consumed[locIdx] = true
			paired[nameIdx] = frags[locIdx].location
		}
	}

	seen := make(map[string]struct{})
	out := make([]Candidate, 0, len(paired))

	for i, f := range frags {
		if f.kind != kindName {
			continue
		}

		c := Candidate{Name: f.name}
		if location, ok := paired[i]; ok {
			c.LocationID = location
		}

		key := normalize.NameKey(c.Name) + "@" + strconv.Itoa(int(c.LocationID))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}

	return out
}

func (s *Scraper) classify(text string) fragment {
	text = normalize.NormalizeName(text)
	if text == "" {
		return fragment{}
	}

	if location := s.table.Resolve(text); location != normalize.UnknownLocation {
		return fragment{kind: kindLocation, location: location}
	}

	if name, ok := nameCandidate(text); ok {
		return fragment{kind: kindName, name: name}
	}

	return fragment{}
}

// nameCandidate accepts text whose first two tokens both have at least two
// characters and start with an upper-case letter.
func nameCandidate(text string) (string, bool) {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return "", false
	}

	for _, token := range tokens[:2] {
		if utf8.RuneCountInString(token) < 2 {
			return "", false
		}
		first, _ := utf8.DecodeRuneInString(token)
		if !unicode.IsUpper(first) {
			return "", false
		}
	}

	return tokens[0] + " " + tokens[1], true
}
