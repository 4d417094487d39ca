// Package stations provides the station directory: CRS code lookup and the
// ranked autocomplete search behind the station picker.
package stations

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// DefaultSearchLimit caps autocomplete results.
const DefaultSearchLimit = 10

// Station is one national rail station.
type Station struct {
	CRS  string `json:"crs"`
	Name string `json:"name"`
}

// MatchType classifies how a search result matched the query, strongest
// first.
type MatchType string

const (
	// MatchCode means the query is a prefix of the CRS code.
	MatchCode MatchType = "code"
	// MatchName means the query is a prefix of the station name.
	MatchName MatchType = "name"
	// MatchPartial means the query appears somewhere in the name.
	MatchPartial MatchType = "partial"
)

// Match is one autocomplete result.
type Match struct {
	Station
	MatchType MatchType `json:"match_type"`
	Display   string    `json:"display"`
}

// Directory holds the station list with a CRS index.
type Directory struct {
	stations []Station
	byCRS    map[string]Station
}

// NewDirectory builds a directory from a station list. Codes are
// upper-cased; later duplicates of a CRS code are ignored.
func NewDirectory(stations []Station) *Directory {
	d := &Directory{
		byCRS: make(map[string]Station, len(stations)),
	}
	for _, s := range stations {
		s.CRS = strings.ToUpper(strings.TrimSpace(s.CRS))
		s.Name = strings.TrimSpace(s.Name)
		if s.CRS == "" {
			continue
		}
		if _, dup := d.byCRS[s.CRS]; dup {
			continue
		}
		d.byCRS[s.CRS] = s
		d.stations = append(d.stations, s)
	}
	sort.Slice(d.stations, func(i, j int) bool {
		return d.stations[i].Name < d.stations[j].Name
	})
	return d
}

// LoadDirectory reads a station list from path. A .csv file is parsed as
// the published station-codes format, rows of repeated name,code pairs.
// Anything else is parsed as a JSON object mapping CRS code to name.
func LoadDirectory(path string) (*Directory, error) {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return loadCSV(path)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stations: read %s: %w", path, err)
	}
	var byCode map[string]string
	if err := json.Unmarshal(raw, &byCode); err != nil {
		return nil, fmt.Errorf("stations: parse %s: %w", path, err)
	}

	list := make([]Station, 0, len(byCode))
	for code, name := range byCode {
		list = append(list, Station{CRS: code, Name: name})
	}
	return NewDirectory(list), nil
}

func loadCSV(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stations: open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var list []Station
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("stations: parse %s: %w", path, err)
		}
		for i := 0; i+1 < len(row); i += 2 {
			name := strings.TrimSpace(row[i])
			code := strings.TrimSpace(row[i+1])
			if name == "" || code == "" {
				continue
			}
			list = append(list, Station{CRS: code, Name: name})
		}
	}
	return NewDirectory(list), nil
}

// Default returns a directory over the built-in station list.
func Default() *Directory {
	return NewDirectory(defaultStations)
}

// Len returns the number of stations in the directory.
func (d *Directory) Len() int {
	return len(d.stations)
}

// Lookup returns the station for a CRS code.
func (d *Directory) Lookup(crs string) (Station, bool) {
	s, ok := d.byCRS[strings.ToUpper(strings.TrimSpace(crs))]
	return s, ok
}

// Name returns the display name for a CRS code, falling back to the code
// itself for stations outside the directory.
func (d *Directory) Name(crs string) string {
	if s, ok := d.Lookup(crs); ok {
		return s.Name
	}
	return strings.ToUpper(strings.TrimSpace(crs))
}

// Search returns ranked autocomplete matches for query: CRS prefix matches
// first (an exact code match ahead of the rest), then name prefix matches,
// then partial name matches, each group ordered by name. A query of exactly
// three letters looks like a CRS code, so partial matches are suppressed to
// keep code lookups clean. A limit <= 0 means DefaultSearchLimit.
func (d *Directory) Search(query string, limit int) []Match {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	upper := strings.ToUpper(query)
	codeLike := len(query) == 3 && isAlpha(query)

	var code, prefix, partial []Match
	for _, s := range d.stations {
		m := Match{Station: s, Display: fmt.Sprintf("%s (%s)", s.Name, s.CRS)}
		nameUpper := strings.ToUpper(s.Name)
		switch {
		case strings.HasPrefix(s.CRS, upper):
			m.MatchType = MatchCode
			if s.CRS == upper {
				code = append([]Match{m}, code...)
			} else {
				code = append(code, m)
			}
		case strings.HasPrefix(nameUpper, upper):
			m.MatchType = MatchName
			prefix = append(prefix, m)
		case !codeLike && strings.Contains(nameUpper, upper):
			m.MatchType = MatchPartial
			partial = append(partial, m)
		}
	}

	matches := append(code, prefix...)
	matches = append(matches, partial...)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func isAlpha(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
