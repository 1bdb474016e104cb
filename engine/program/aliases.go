package program

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

var dayIndexByName = map[string]int{
	"monday": 0, "mon": 0,
	"tuesday": 1, "tue": 1, "tues": 1,
	"wednesday": 2, "wed": 2,
	"thursday": 3, "thu": 3, "thurs": 3,
	"friday": 4, "fri": 4,
	"saturday": 5, "sat": 5,
	"sunday": 6, "sun": 6,
}

var dayKeys = []string{"dayName", "day_name", "day", "weekday", "weekdayName", "dayOfWeek", "day_of_week"}

// NormalizeScheduleAliases rewrites schedule entries of a decoded program so
// that dayOfWeek and workoutIndex are canonical integers when they can be
// resolved from day names, workout ids or workout names. Unresolvable entries
// are left as they are. The input is not modified.
func NormalizeScheduleAliases(input any) any {
	root, ok := input.(map[string]any)
	if !ok {
		return input
	}
	out := make(map[string]any, len(root))
	for k, v := range root {
		out[k] = v
	}

	workouts, _ := root["workouts"].([]any)
	byID := make(map[string]int)
	byName := make(map[string]int)
	for i, item := range workouts {
		w, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := w["id"].(string); ok && strings.TrimSpace(id) != "" {
			byID[strings.TrimSpace(id)] = i
		}
		if name, ok := w["name"].(string); ok {
			key := normalizeName(name)
			if _, seen := byName[key]; key != "" && !seen {
				byName[key] = i
			}
		}
	}

	schedule, ok := root["schedule"].(map[string]any)
	if !ok {
		return out
	}
	pattern, ok := schedule["weeklyPattern"].([]any)
	if !ok {
		return out
	}
	lookup := workoutLookup{byID: byID, byName: byName, count: len(workouts)}
	normalized := make([]any, len(pattern))
	for i, item := range pattern {
		entry, ok := item.(map[string]any)
		if !ok {
			normalized[i] = item
			continue
		}
		next := make(map[string]any, len(entry)+2)
		for k, v := range entry {
			next[k] = v
		}
		if day, ok := parseDayOfWeek(firstPresent(entry, dayKeys...)); ok {
			next["dayOfWeek"] = day
		}
		if idx, ok := lookup.resolve(entry); ok {
			next["workoutIndex"] = idx
		}
		normalized[i] = next
	}

	nextSchedule := make(map[string]any, len(schedule))
	for k, v := range schedule {
		nextSchedule[k] = v
	}
	nextSchedule["weeklyPattern"] = normalized
	out["schedule"] = nextSchedule
	return out
}

type workoutLookup struct {
	byID   map[string]int
	byName map[string]int
	count  int
}

func (l workoutLookup) resolve(entry map[string]any) (int, bool) {
	direct, hasDirect := parseInteger(firstPresent(entry, "workoutIndex", "workout_index"))
	if hasDirect && direct >= 0 && direct < l.count {
		return direct, true
	}
	if id, ok := firstPresent(entry, "workoutId", "workout_id").(string); ok {
		if idx, found := l.byID[strings.TrimSpace(id)]; found {
			return idx, true
		}
	}
	if name, ok := firstPresent(entry, "workoutName", "workout_name", "workout").(string); ok {
		if idx, found := l.byName[normalizeName(name)]; found {
			return idx, true
		}
	}
	if nested, ok := entry["workout"].(map[string]any); ok {
		if id, ok := nested["id"].(string); ok {
			if idx, found := l.byID[strings.TrimSpace(id)]; found {
				return idx, true
			}
		}
		if name, ok := nested["name"].(string); ok {
			if idx, found := l.byName[normalizeName(name)]; found {
				return idx, true
			}
		}
	}
	if hasDirect {
		// out of range; keep it numeric so invariant checks can report it
		return direct, true
	}
	return 0, false
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func parseInteger(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func parseDayOfWeek(v any) (int, bool) {
	if n, ok := parseInteger(v); ok && n >= 0 && n <= 6 {
		return n, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	letters := strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r
		}
		return -1
	}, strings.ToLower(strings.TrimSpace(s)))
	day, ok := dayIndexByName[letters]
	return day, ok
}
