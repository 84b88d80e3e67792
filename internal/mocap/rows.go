// Package mocap reads and writes motion-capture trajectories stored as
// whitespace-delimited text, one sample per line and one coordinate per column.
package mocap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ayusman/kinesmooth/internal/smoothing"
)

// ErrRaggedRow is returned when a row has a different number of columns than
// the first data row.
var ErrRaggedRow = errors.New("ragged row")

// ReadRows parses a trajectory from r. Blank lines and lines starting with '#'
// are skipped; columns may be separated by whitespace or commas.
func ReadRows(r io.Reader) (smoothing.PointSequence, error) {
	var rows smoothing.PointSequence
	width := 0

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.FieldsFunc(line, func(c rune) bool {
			return c == ',' || c == ' ' || c == '\t'
		})
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", lineNo, i+1, err)
			}
			row[i] = v
		}

		if width == 0 {
			width = len(row)
		} else if len(row) != width {
			return nil, fmt.Errorf("line %d has %d columns, expected %d: %w", lineNo, len(row), width, ErrRaggedRow)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trajectory: %w", err)
	}

	return rows, nil
}

// ReadFile parses the trajectory stored at path.
func ReadFile(path string) (smoothing.PointSequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadRows(f)
}

// WriteRows writes one comma-separated row per point.
func WriteRows(w io.Writer, rows smoothing.PointSequence) error {
	bw := bufio.NewWriter(w)
	for _, row := range rows {
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if _, err := bw.WriteString(strings.Join(parts, ", ") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes rows to path, replacing any existing file.
func WriteFile(path string, rows smoothing.PointSequence) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteRows(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
