package solarterm

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Format selects the serialization of a term table
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks a format from the file extension, defaulting to YAML
func FormatFromPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// China Standard Time; the zone of published solar-term tables
var ChinaStandardTime = time.FixedZone("CST", 8*3600)

var timestampLayouts = []string{"2006-01-02 15:04", "2006-01-02 15:04:05", time.RFC3339}

// document is the on-disk shape: year -> {term -> timestamp}. The year key
// only groups entries; instants are re-indexed by their own timestamp.
type document struct {
	Timezone string                    `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	Years    map[int]map[string]string `yaml:"years" json:"years"`
}

// LoadFile reads a YAML or JSON term table
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open solar-term table: %w", err)
	}
	defer f.Close()

	t, err := Decode(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse solar-term table %s: %w", path, err)
	}
	return t, nil
}

// Decode parses a term table. Besides the {timezone, years} document it
// accepts a bare year-keyed map, read in China Standard Time.
func Decode(r io.Reader, format Format) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc document
	var bare map[string]map[string]string
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		if doc.Years == nil {
			if err := json.Unmarshal(raw, &bare); err != nil {
				return nil, err
			}
		}
	default:
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		if doc.Years == nil {
			if err := yaml.Unmarshal(raw, &bare); err != nil {
				return nil, err
			}
		}
	}
	if doc.Years == nil && bare != nil {
		doc.Years = make(map[int]map[string]string, len(bare))
		for k, v := range bare {
			y, err := strconv.Atoi(k)
			if err != nil {
				return nil, fmt.Errorf("invalid year key %q", k)
			}
			doc.Years[y] = v
		}
	}

	loc, err := parseZone(doc.Timezone)
	if err != nil {
		return nil, err
	}

	var instants []Instant
	for y, terms := range doc.Years {
		for name, ts := range terms {
			term, err := ParseTerm(name)
			if err != nil {
				return nil, fmt.Errorf("year %d: %w", y, err)
			}
			at, err := parseTimestamp(ts, loc)
			if err != nil {
				return nil, fmt.Errorf("year %d term %s: %w", y, name, err)
			}
			instants = append(instants, Instant{Term: term, At: at})
		}
	}
	return NewTable(instants)
}

// Encode writes the table grouped by Gregorian year in calendar order
func Encode(w io.Writer, t *Table, format Format, header string) error {
	instants := t.Instants()
	if format == FormatJSON {
		doc := document{Timezone: "+08:00", Years: map[int]map[string]string{}}
		for _, in := range instants {
			y := in.At.In(ChinaStandardTime).Year()
			if doc.Years[y] == nil {
				doc.Years[y] = map[string]string{}
			}
			doc.Years[y][in.Term.String()] = in.At.In(ChinaStandardTime).Format(timestampLayouts[0])
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	years := &yaml.Node{Kind: yaml.MappingNode}
	var current *yaml.Node
	currentYear := 0
	for _, in := range instants {
		at := in.At.In(ChinaStandardTime)
		if current == nil || at.Year() != currentYear {
			currentYear = at.Year()
			current = &yaml.Node{Kind: yaml.MappingNode}
			years.Content = append(years.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(currentYear)},
				current)
		}
		current.Content = append(current.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: in.Term.String()},
			&yaml.Node{Kind: yaml.ScalarNode, Style: yaml.DoubleQuotedStyle, Value: at.Format(timestampLayouts[0])})
	}
	root := &yaml.Node{
		Kind:        yaml.MappingNode,
		HeadComment: header,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "timezone"},
			{Kind: yaml.ScalarNode, Style: yaml.DoubleQuotedStyle, Value: "+08:00"},
			{Kind: yaml.ScalarNode, Value: "years"},
			years,
		},
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return err
	}
	return enc.Close()
}

func parseZone(tz string) (*time.Location, error) {
	switch {
	case tz == "":
		return ChinaStandardTime, nil
	case tz[0] == '+' || tz[0] == '-':
		t, err := time.Parse("-07:00", tz)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone offset %q", tz)
		}
		_, off := t.Zone()
		return time.FixedZone(tz, off), nil
	default:
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
		return loc, nil
	}
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if at, err := time.ParseInLocation(layout, s, loc); err == nil {
			return at, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
