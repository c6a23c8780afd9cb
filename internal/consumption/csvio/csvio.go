package csvio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/lubeqc/internal/catalog"
	"github.com/smallbiznis/lubeqc/internal/consumption/domain"
)

// Header is the export column order.
var Header = []string{"date", "wo", "asset", "lubricantType", "amount", "unit"}

// TimestampLayout is RFC 3339 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Encode writes the header and one fully quoted row per record.
func Encode(w io.Writer, records []domain.Record) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(Header, ",") + "\n"); err != nil {
		return err
	}
	for _, r := range records {
		fields := []string{
			r.Timestamp.UTC().Format(TimestampLayout),
			r.WorkOrder,
			r.AssetID,
			r.LubricantType,
			strconv.FormatFloat(r.Amount, 'f', -1, 64),
			string(r.Unit),
		}
		for i, field := range fields {
			if i > 0 {
				if err := bw.WriteByte(','); err != nil {
					return err
				}
			}
			if _, err := bw.WriteString(quote(field)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// Result is the outcome of Decode.
type Result struct {
	Inputs  []domain.RecordInput
	Dropped int
	Errors  []string
}

type columns struct {
	date, wo, asset, lubricant, amount, unit int
	width                                    int
}

// Decode parses an import file. Rows that are malformed, short or fail the
// admission rules are dropped; a file without a usable header is an error.
func Decode(r io.Reader, now time.Time) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var result Result

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return result, fmt.Errorf("%w: empty file", domain.ErrInvalidCSV)
		}
		return result, fmt.Errorf("%w: %v", domain.ErrInvalidCSV, err)
	}
	cols, err := mapHeader(header)
	if err != nil {
		return result, err
	}

	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			result.Dropped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		in, err := parseRow(row, cols, now)
		if err != nil {
			result.Dropped++
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		result.Inputs = append(result.Inputs, in)
	}

	return result, nil
}

func mapHeader(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, exists := index[name]; !exists {
			index[name] = i
		}
	}
	lookup := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		return -1
	}

	cols := columns{
		date:      lookup("date"),
		wo:        lookup("wo"),
		asset:     lookup("asset"),
		lubricant: lookup("lubricanttype"),
		amount:    lookup("amount"),
		unit:      lookup("unit"),
		width:     len(header),
	}
	if cols.amount < 0 || cols.lubricant < 0 {
		return cols, fmt.Errorf("%w: missing amount or lubricantType column", domain.ErrInvalidCSV)
	}
	return cols, nil
}

func parseRow(row []string, cols columns, now time.Time) (domain.RecordInput, error) {
	if len(row) < cols.width {
		return domain.RecordInput{}, errors.New("short row")
	}
	field := func(i int) string {
		if i < 0 {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	ts := now
	if raw := field(cols.date); raw != "" {
		parsed, ok := domain.ParseTimestamp(raw)
		if !ok {
			return domain.RecordInput{}, domain.ErrInvalidTimestamp
		}
		ts = parsed
	}

	unit := catalog.UnitGram
	if raw := field(cols.unit); raw != "" {
		unit = catalog.ParseUnit(raw)
	}

	in := domain.RecordInput{
		WorkOrder:     field(cols.wo),
		AssetID:       field(cols.asset),
		LubricantType: field(cols.lubricant),
		Amount:        domain.ParseAmount(field(cols.amount)),
		Unit:          unit,
		Timestamp:     ts,
	}.Normalize()
	if err := in.Validate(); err != nil {
		return domain.RecordInput{}, err
	}
	return in, nil
}
