// Package dataset builds, stores and splits labelled feature tables.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mikey/phish-detector/internal/core"
	"github.com/mikey/phish-detector/internal/schema"
)

// Row is one labelled message
type Row struct {
	Vector core.FeatureVector
	Label  core.Label
	// Source is the file the row was extracted from, not persisted
	Source string
}

// Header returns the dataset header for a registry
func Header(reg *schema.Registry) []string {
	header := make([]string, 0, reg.Len()+2)
	header = append(header, schema.FromDomainColumn)
	header = append(header, reg.Columns()...)
	return append(header, schema.LabelColumn)
}

// Write encodes rows as CSV in registry order
func Write(w io.Writer, reg *schema.Registry, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(reg)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, reg.Len()+2)
	for _, row := range rows {
		record[0] = row.Vector.FromDomain
		for i, v := range reg.Align(row.Vector) {
			record[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		record[len(record)-1] = strconv.Itoa(int(row.Label))
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read decodes a CSV dataset. The registry is derived from the header, so
// columns may appear in any order.
func Read(r io.Reader) (*schema.Registry, []Row, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, core.SchemaMismatch("dataset is empty", nil)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	header = append([]string(nil), header...)

	reg, err := schema.FromHeader(header)
	if err != nil {
		return nil, nil, err
	}

	labelIdx, domainIdx := -1, -1
	featureIdx := make([]int, 0, reg.Len())
	for i, h := range header {
		h = strings.TrimSpace(h)
		switch {
		case h == schema.LabelColumn:
			labelIdx = i
		case h == schema.FromDomainColumn || h == "from_domain":
			domainIdx = i
		default:
			featureIdx = append(featureIdx, i)
		}
	}
	cols := reg.Columns()

	var rows []Row
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read line %d: %w", line, err)
		}

		vec := core.NewFeatureVector()
		for k, i := range featureIdx {
			v, err := parseValue(record[i])
			if err != nil {
				return nil, nil, fmt.Errorf("line %d column %s: %w", line, cols[k], err)
			}
			vec.Set(cols[k], v)
		}
		if domainIdx >= 0 {
			vec.FromDomain = record[domainIdx]
		}

		label, err := strconv.Atoi(strings.TrimSpace(record[labelIdx]))
		if err != nil || (label != 0 && label != 1) {
			return nil, nil, fmt.Errorf("line %d: invalid label %q", line, record[labelIdx])
		}
		rows = append(rows, Row{Vector: vec, Label: core.Label(label)})
	}

	return reg, rows, nil
}

// parseValue reads a numeric cell, blank cells are 0
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteFile writes a dataset to path
func WriteFile(path string, reg *schema.Registry, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create dataset %s: %w", path, err)
	}
	if err := Write(f, reg, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads a dataset from path
func ReadFile(path string) (*schema.Registry, []Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// Matrix converts rows into the dense training matrix for a registry
func Matrix(reg *schema.Registry, rows []Row) ([][]float64, []int) {
	x := make([][]float64, len(rows))
	y := make([]int, len(rows))
	for i, row := range rows {
		x[i] = reg.Align(row.Vector)
		y[i] = int(row.Label)
	}
	return x, y
}
