package weather

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BinCount is the number of published winds-aloft altitude bins
const BinCount = 9

// NotAvailable is the sentinel used for absent or undecodable values
const NotAvailable = "N/A"

// headerLines is the number of product header lines preceding station rows
const headerLines = 8

// AltitudeBins are the published forecast altitudes in feet, low to high
var AltitudeBins = [BinCount]int{3000, 6000, 9000, 12000, 18000, 24000, 30000, 34000, 39000}

// binColumns are the [start, end) byte offsets of each altitude column
var binColumns = [BinCount][2]int{
	{4, 8}, {9, 16}, {17, 24}, {25, 32}, {33, 40}, {41, 48}, {49, 54}, {56, 61}, {62, 69},
}

// WindsAloftTable maps station codes to their 9 raw forecast codes.
// A table is never mutated after ParseBulkText returns it.
type WindsAloftTable struct {
	rows map[string][BinCount]string
}

// Row returns the raw codes for a station, low altitude first
func (t *WindsAloftTable) Row(code string) ([BinCount]string, bool) {
	if t == nil {
		return [BinCount]string{}, false
	}
	row, ok := t.rows[code]
	return row, ok
}

// Len returns the number of stations in the table
func (t *WindsAloftTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Codes returns the station codes in the table, sorted
func (t *WindsAloftTable) Codes() []string {
	if t == nil {
		return nil
	}
	codes := make([]string, 0, len(t.rows))
	for code := range t.rows {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ParseBulkText parses a fixed-column winds-aloft product. The first 8 lines
// are header. Each row's 3-character identifier is prefixed with prefix to form
// the station code; rows for which isPublishing returns false are skipped.
// A nil isPublishing accepts every row.
func ParseBulkText(text, prefix string, isPublishing func(code string) bool) *WindsAloftTable {
	table := &WindsAloftTable{rows: make(map[string][BinCount]string)}

	lines := strings.Split(text, "\n")
	if len(lines) <= headerLines {
		return table
	}

	for _, line := range lines[headerLines:] {
		line = strings.TrimRight(line, "\r")
		if len(line) < 3 {
			continue
		}

		ident := strings.TrimSpace(line[:3])
		if ident == "" {
			continue
		}
		code := prefix + ident
		if isPublishing != nil && !isPublishing(code) {
			continue
		}

		var row [BinCount]string
		for i, col := range binColumns {
			row[i] = column(line, col[0], col[1])
		}
		table.rows[code] = row
	}

	return table
}

func column(line string, start, end int) string {
	if start >= len(line) {
		return NotAvailable
	}
	if end > len(line) {
		end = len(line)
	}
	v := strings.TrimSpace(line[start:end])
	if v == "" {
		return NotAvailable
	}
	return v
}

// DecodedWind is a decoded winds-aloft code
type DecodedWind struct {
	Direction string `json:"direction"` // degrees, "VARIABLE" or "N/A"
	Speed     string `json:"speed"`     // knots, "LIGHT", "199 or greater" or "N/A"
}

var (
	lightAndVariable = DecodedWind{Direction: "VARIABLE", Speed: "LIGHT"}
	undecodable      = DecodedWind{Direction: NotAvailable, Speed: NotAvailable}
)

// DecodeCode decodes one raw FAA winds-aloft code. It never fails:
// anything it cannot decode yields N/A for both fields.
func DecodeCode(raw string) DecodedWind {
	code := strings.TrimSpace(raw)

	// Drop the temperature annotation
	if i := strings.IndexAny(code, "+-"); i >= 0 {
		code = code[:i]
	}

	if code == "9900" || (len(code) == 6 && strings.HasPrefix(code, "9900")) {
		return lightAndVariable
	}

	if !isDigits(code) {
		return undecodable
	}

	switch len(code) {
	case 4:
		dir, _ := strconv.Atoi(code[:2])
		speed, _ := strconv.Atoi(code[2:])
		return DecodedWind{
			Direction: strconv.Itoa(dir * 10),
			Speed:     strconv.Itoa(speed),
		}

	case 6:
		dir, _ := strconv.Atoi(code[:2])
		dir *= 10
		speed, _ := strconv.Atoi(code[2:4])

		if speed >= 100 && speed <= 199 {
			if dir >= 100 {
				dir -= 50
				speed -= 100
			} else {
				dir += 50
				speed += 100
			}
		}

		if speed >= 99 {
			return DecodedWind{Direction: strconv.Itoa(dir), Speed: "199 or greater"}
		}
		return DecodedWind{Direction: strconv.Itoa(dir), Speed: strconv.Itoa(speed)}
	}

	return undecodable
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// AltitudeBin returns the index of the published altitude nearest to altitude.
// Ties go to the lower bin; out-of-range altitudes clamp to the first or last bin.
func AltitudeBin(altitude int) int {
	best := 0
	bestDiff := absInt(altitude - AltitudeBins[0])
	for i := 1; i < BinCount; i++ {
		if d := absInt(altitude - AltitudeBins[i]); d < bestDiff {
			best, bestDiff = i, d
		}
	}
	return best
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// FormatLegacy renders the "{direction}@{speed}@{raw}@{station}@{distance}" response string
func FormatLegacy(wind DecodedWind, raw, station string, distanceNM float64) string {
	return fmt.Sprintf("%s@%s@%s@%s@%.2f", wind.Direction, wind.Speed, raw, station, distanceNM)
}
