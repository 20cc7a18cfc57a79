// Package dataset reads observation sets from CSV and writes jump records
// back out.
//
// Input files carry a header row. Columns named x0, x1, ... hold the
// coordinates and columns named y0, y1, ... the outcome channels; other
// columns are ignored.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"fdd/internal/fdderr"
	"fdd/internal/models"
	"fdd/pkg/normalize"
)

// column positions of one family (x or y), ordered by their numeric suffix
func columns(header []string, prefix string) ([]int, error) {
	type col struct{ n, pos int }
	var found []col
	seen := map[int]bool{}
	for pos, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		n, err := strconv.Atoi(name[len(prefix):])
		if err != nil {
			continue
		}
		if seen[n] {
			return nil, fmt.Errorf("duplicate column %s%d", prefix, n)
		}
		seen[n] = true
		found = append(found, col{n, pos})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	out := make([]int, len(found))
	for i, c := range found {
		if c.n != i {
			return nil, fmt.Errorf("column %s%d missing", prefix, i)
		}
		out[i] = c.pos
	}
	return out, nil
}

// Read parses observations from CSV and validates them
func Read(r io.Reader) (models.Observations, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return models.Observations{}, fdderr.Errorf(fdderr.StageInput, fdderr.Configuration, "failed to read header: %w", err)
	}
	header = append([]string(nil), header...)

	xcols, err := columns(header, "x")
	if err == nil && len(xcols) == 0 {
		err = fmt.Errorf("no x0 column")
	}
	if err != nil {
		return models.Observations{}, fdderr.New(fdderr.StageInput, fdderr.Configuration, err)
	}
	ycols, err := columns(header, "y")
	if err == nil && len(ycols) == 0 {
		err = fmt.Errorf("no y0 column")
	}
	if err != nil {
		return models.Observations{}, fdderr.New(fdderr.StageInput, fdderr.Configuration, err)
	}

	var obs models.Observations
	parse := func(record []string, cols []int, line int) ([]float64, error) {
		out := make([]float64, len(cols))
		for i, pos := range cols {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[pos]), 64)
			if err != nil {
				return nil, fdderr.Errorf(fdderr.StageInput, fdderr.Configuration,
					"line %d column %s: %w", line, header[pos], err)
			}
			out[i] = v
		}
		return out, nil
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.Observations{}, fdderr.Errorf(fdderr.StageInput, fdderr.Configuration, "line %d: %w", line, err)
		}
		x, err := parse(record, xcols, line)
		if err != nil {
			return models.Observations{}, err
		}
		y, err := parse(record, ycols, line)
		if err != nil {
			return models.Observations{}, err
		}
		obs.X = append(obs.X, x)
		obs.Y = append(obs.Y, y)
	}

	if err := normalize.Validate(obs); err != nil {
		return models.Observations{}, err
	}
	return obs, nil
}

// ReadFile reads observations from the CSV file at path
func ReadFile(path string) (models.Observations, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Observations{}, fdderr.Errorf(fdderr.StageInput, fdderr.Configuration, "failed to open dataset: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// WriteJumps writes one CSV row per jump record: the location coordinates
// x0..x{D-1}, then from, to and size
func WriteJumps(w io.Writer, jumps models.JumpRecords) error {
	cw := csv.NewWriter(w)

	dims := 0
	if len(jumps) > 0 {
		dims = len(jumps[0].Location)
	}
	header := make([]string, 0, dims+3)
	for d := 0; d < dims; d++ {
		header = append(header, fmt.Sprintf("x%d", d))
	}
	header = append(header, "from", "to", "size")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	format := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	row := make([]string, 0, dims+3)
	for i, j := range jumps {
		row = row[:0]
		for _, c := range j.Location {
			row = append(row, format(c))
		}
		row = append(row, format(j.From), format(j.To), format(j.Size))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write jump %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJumpsFile writes the jump records to a CSV file at path
func WriteJumpsFile(path string, jumps models.JumpRecords) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create jumps file: %w", err)
	}
	if err := WriteJumps(f, jumps); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
