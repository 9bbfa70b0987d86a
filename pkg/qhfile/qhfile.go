// Package qhfile reads pump Q-H datasets uploaded with the nameplate step.
//
// The first two columns are taken as flow and head; rows where either cell is
// blank or not a number (headers, units, trailing notes) are skipped.
package qhfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/pumpspares/src_project/internal/model"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported Q-H file format (use .csv or .xlsx)")
	ErrNoData            = errors.New("Q-H file has no numeric Q/H rows")
	ErrTooFewColumns     = errors.New("Q-H file must have at least 2 columns (Q and H)")
)

// MaxSize is the largest upload we accept.
const MaxSize = 8 << 20

// Parse decodes a dataset, picking the reader from the file extension.
// A missing extension is treated as CSV.
func Parse(name string, r io.Reader) ([]model.QHPoint, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", "":
		return ParseCSV(r)
	case ".xlsx", ".xlsm":
		return ParseXLSX(r)
	case ".xls":
		return nil, fmt.Errorf("%w: %q is a legacy Excel 97-2003 workbook, save it as .xlsx or .csv", ErrUnsupportedFormat, name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}
}

// ParseCSV accepts comma, semicolon or tab separated text.
func ParseCSV(r io.Reader) ([]model.QHPoint, error) {
	raw, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read Q-H file: %w", err)
	}
	if len(raw) > MaxSize {
		return nil, fmt.Errorf("Q-H file larger than %d bytes", MaxSize)
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = sniffDelimiter(raw)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = cr.Comma != '\t'
	cr.Comment = '#'

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse Q-H csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return fromRows(rows)
}

// ParseXLSX reads the first worksheet of a workbook.
func ParseXLSX(r io.Reader) ([]model.QHPoint, error) {
	f, err := excelize.OpenReader(io.LimitReader(r, MaxSize))
	if err != nil {
		return nil, fmt.Errorf("open Q-H workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrNoData
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return fromRows(rows)
}

func fromRows(rows [][]string) ([]model.QHPoint, error) {
	wide := false
	out := make([]model.QHPoint, 0, len(rows))
	for _, rec := range rows {
		if len(rec) < 2 {
			continue
		}
		wide = true
		q, okQ := number(rec[0])
		h, okH := number(rec[1])
		if !okQ || !okH {
			continue
		}
		out = append(out, model.QHPoint{Q: q, H: h})
	}
	if !wide {
		return nil, ErrTooFewColumns
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func number(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// sniffDelimiter guarda solo la prima riga non vuota.
func sniffDelimiter(raw []byte) rune {
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.Contains(line, "\t"):
			return '\t'
		case strings.Contains(line, ";") && !strings.Contains(line, ","):
			return ';'
		}
		return ','
	}
	return ','
}
