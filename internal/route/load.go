package route

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadWaypoints reads the sparse highway map: whitespace-separated text,
// one waypoint per line as "s x y dx dy". Blank lines are skipped.
func LoadWaypoints(path string) ([]Waypoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMapLoad, err)
	}
	defer f.Close()

	var wps []Waypoint
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 5 {
			return nil, fmt.Errorf("%w: line %d: want 5 fields, got %d", ErrMapLoad, line, len(fields))
		}

		var vals [5]float64
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMapLoad, line, err)
			}
			vals[i] = v
		}
		wps = append(wps, Waypoint{S: vals[0], X: vals[1], Y: vals[2], DX: vals[3], DY: vals[4]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMapLoad, err)
	}
	if len(wps) == 0 {
		return nil, fmt.Errorf("%w: empty map file %s", ErrMapLoad, path)
	}
	return wps, nil
}
