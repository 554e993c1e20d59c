package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"sjsage522/catalogworker/internal/models"
	"sjsage522/catalogworker/pkg/errors"
)

// Weekdays lists the keys of a day-keyed brand file, monday first
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// BrandSchedule is the parsed brand file. A flat file has a single group
// with an empty day name.
type BrandSchedule struct {
	groups []brandGroup
}

type brandGroup struct {
	day    string
	brands []models.BrandTarget
}

// LoadBrands reads the brand file at path. Both the flat list variant and the
// weekday-keyed variant are accepted. Missing or unparseable files are
// configuration faults.
func LoadBrands(path string) (*BrandSchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("failed to read brand file %s", path), err)
	}
	schedule, err := ParseBrands(data)
	if err != nil {
		return nil, errors.NewConfiguration(fmt.Sprintf("failed to parse brand file %s", path), err)
	}
	return schedule, nil
}

// ParseBrands parses brand file contents, keeping the order of days as written
func ParseBrands(data []byte) (*BrandSchedule, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("brand file is empty")
	}

	switch trimmed[0] {
	case '[':
		var brands []models.BrandTarget
		if err := json.Unmarshal(trimmed, &brands); err != nil {
			return nil, err
		}
		return &BrandSchedule{groups: []brandGroup{{brands: normalizeBrands(brands)}}}, nil
	case '{':
		return parseDayKeyed(trimmed)
	default:
		return nil, fmt.Errorf("brand file must be a JSON array or object")
	}
}

func parseDayKeyed(data []byte) (*BrandSchedule, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	schedule := &BrandSchedule{}
	seen := make(map[string]bool)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		day := strings.ToLower(strings.TrimSpace(tok.(string)))
		if !isWeekday(day) {
			return nil, fmt.Errorf("unknown weekday key %q", tok)
		}
		if seen[day] {
			return nil, fmt.Errorf("duplicate weekday key %q", day)
		}
		seen[day] = true

		var brands []models.BrandTarget
		if err := dec.Decode(&brands); err != nil {
			return nil, fmt.Errorf("brands for %s: %w", day, err)
		}
		schedule.groups = append(schedule.groups, brandGroup{day: day, brands: normalizeBrands(brands)})
	}
	return schedule, nil
}

func normalizeBrands(brands []models.BrandTarget) []models.BrandTarget {
	for i := range brands {
		brands[i].Name = strings.TrimSpace(brands[i].Name)
		brands[i].URL = strings.TrimSpace(brands[i].URL)
		if brands[i].Name == "" {
			brands[i].Name = "Unknown"
		}
	}
	return brands
}

func isWeekday(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// DayKeyed reports whether the file used the weekday-keyed variant
func (s *BrandSchedule) DayKeyed() bool {
	return len(s.groups) > 0 && s.groups[0].day != ""
}

// All returns every brand, flattened in file order
func (s *BrandSchedule) All() []models.BrandTarget {
	var all []models.BrandTarget
	for _, g := range s.groups {
		all = append(all, g.brands...)
	}
	return all
}

// ForDay returns the brands scheduled on the given weekday
func (s *BrandSchedule) ForDay(day time.Weekday) []models.BrandTarget {
	name := strings.ToLower(day.String())
	for _, g := range s.groups {
		if g.day == name {
			return append([]models.BrandTarget(nil), g.brands...)
		}
	}
	return nil
}

// Resolve returns the brands for this run. Only a full run (test mode 0) with
// scheduling enabled and a day-keyed file is narrowed to today's brands.
func (s *BrandSchedule) Resolve(useSchedule bool, testMode int, now time.Time) []models.BrandTarget {
	if useSchedule && testMode == 0 && s.DayKeyed() {
		return s.ForDay(now.Weekday())
	}
	return s.All()
}
