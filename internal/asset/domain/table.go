package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ErrInvalidCatalog reports an unusable catalog file.
var ErrInvalidCatalog = errors.New("invalid_catalog")

var (
	idHeaders      = []string{"equipment / asset id", "equipment/asset id", "asset id"}
	profileHeaders = append(append([]string{}, idHeaders...), "equipment")
)

type fieldSpec struct {
	label      string
	candidates []string
}

var profileFields = []fieldSpec{
	{"Equipment / Asset ID", profileHeaders},
	{"Manufacturer Code Pillow Block", []string{"manufacturer code pillow block"}},
	{"Manufacturer Pillow Block", []string{"manufacturer pillow block"}},
	{"Manufacturer Code Bearing", []string{"manufacturer code bearing"}},
	{"Manufacturer Bearing", []string{"manufacturer bearing"}},
	{"Bearing Type", []string{"bearing type"}},
	{"Lubricant Type", []string{"lubricant type"}},
	{"Grease Fitting Position", []string{"grease fitting position"}},
	{"Bearing Volume", []string{"bearing volume", "bearing volume (cm3)", "bearing volume (cm³)"}},
	{"Pillow Block 1st Fill %", []string{"pillow block 1st fill %", "first fill %"}},
	{"Pillow Block 1st Fill g", []string{"pillow block 1st fill g", "first fill g"}},
	{"Lubrication Grease (g)", []string{"lubrication grease (g)", "amount g"}},
	{"Lubrication Period (weeks)", []string{"lubrication period (weeks)", "period (weeks)"}},
	{"Lub Point ID", []string{"lub point id"}},
	{"Orientation Point", []string{"orientation point"}},
	{"Line Section", []string{"line section"}},
}

// Table is a parsed catalog file with a normalized header.
type Table struct {
	header []string
	rows   [][]string
}

// NormalizeHeader lower-cases a header cell and collapses its whitespace.
func NormalizeHeader(value string) string {
	value = strings.TrimPrefix(value, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// ParseTable reads a catalog CSV. A file without rows is an error.
func ParseTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidCatalog)
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = NormalizeHeader(h)
	}
	return &Table{header: header, rows: rows[1:]}, nil
}

// Column returns the index of the first matching candidate header, or -1.
func (t *Table) Column(candidates ...string) int {
	for _, c := range candidates {
		for i, h := range t.header {
			if h == c {
				return i
			}
		}
	}
	return -1
}

// IDs lists the distinct non-empty asset ids in sorted order.
func (t *Table) IDs() ([]string, error) {
	col := t.Column(idHeaders...)
	if col == -1 {
		return nil, fmt.Errorf("%w: no asset id column", ErrInvalidCatalog)
	}
	seen := make(map[string]struct{}, len(t.rows))
	ids := make([]string, 0, len(t.rows))
	for _, row := range t.rows {
		id := strings.TrimSpace(cell(row, col))
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no asset ids", ErrInvalidCatalog)
	}
	sort.Strings(ids)
	return ids, nil
}

// Fields returns the profile of name, or false when no row carries that id.
func (t *Table) Fields(name string) ([]Field, bool) {
	col := t.Column(profileHeaders...)
	if col == -1 {
		return nil, false
	}
	name = strings.TrimSpace(name)
	for _, row := range t.rows {
		if strings.TrimSpace(cell(row, col)) != name {
			continue
		}
		fields := make([]Field, 0, len(profileFields))
		for _, pf := range profileFields {
			fields = append(fields, Field{Label: pf.label, Value: strings.TrimSpace(cell(row, t.Column(pf.candidates...)))})
		}
		return fields, true
	}
	return nil, false
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Fields renders a custom asset with the catalog labels.
func (a CustomAsset) Fields() []Field {
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	values := map[string]string{
		"Equipment / Asset ID":           a.ID,
		"Manufacturer Code Pillow Block": a.ManufCodePillowBlock,
		"Manufacturer Pillow Block":      a.ManufPillowBlock,
		"Manufacturer Code Bearing":      a.ManufCodeBearing,
		"Manufacturer Bearing":           a.ManufBearing,
		"Bearing Type":                   a.BearingType,
		"Lubricant Type":                 a.LubricantType,
		"Grease Fitting Position":        a.GreaseFittingPosition,
		"Bearing Volume":                 num(a.BearingVolume),
		"Pillow Block 1st Fill %":        num(a.FirstFillPercent),
		"Pillow Block 1st Fill g":        num(a.FirstFillGrams),
		"Lubrication Grease (g)":         num(a.LubricationGrams),
		"Lubrication Period (weeks)":     num(a.PeriodWeeks),
		"Lub Point ID":                   a.LubPointID,
		"Orientation Point":              a.OrientationPoint,
		"Line Section":                   a.LineSection,
	}
	fields := make([]Field, 0, len(profileFields))
	for _, pf := range profileFields {
		fields = append(fields, Field{Label: pf.label, Value: values[pf.label]})
	}
	return fields
}
