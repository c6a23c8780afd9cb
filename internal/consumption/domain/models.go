package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/lubeqc/internal/catalog"
)

// Record is one lubricant consumption entry. The JSON layout matches the
// persisted QAQC_CONSUMPTION_V1 list.
type Record struct {
	ID            string       `json:"id"`
	WorkOrder     string       `json:"wo"`
	AssetID       string       `json:"asset"`
	LubricantType string       `json:"lubricantType"`
	Amount        float64      `json:"amount"`
	Unit          catalog.Unit `json:"unit"`
	Timestamp     time.Time    `json:"date"`
}

// RecordInput carries the user-supplied fields of a record.
type RecordInput struct {
	WorkOrder     string       `json:"wo" validate:"max=128"`
	AssetID       string       `json:"asset" validate:"required,max=256"`
	LubricantType string       `json:"lubricantType" validate:"required,max=128"`
	Amount        float64      `json:"amount" validate:"gt=0"`
	Unit          catalog.Unit `json:"unit" validate:"oneof=g L"`
	Timestamp     time.Time    `json:"date" validate:"required"`
}

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidWorkOrder     = errors.New("invalid_work_order")
	ErrInvalidAsset         = errors.New("invalid_asset")
	ErrInvalidLubricantType = errors.New("invalid_lubricant_type")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidUnit          = errors.New("invalid_unit")
	ErrInvalidTimestamp     = errors.New("invalid_timestamp")
	ErrUnitMismatch         = errors.New("invalid_unit_family")
	ErrNotFound             = errors.New("record_not_found")
	ErrNoValidRows          = errors.New("no_valid_rows")
	ErrInvalidCSV           = errors.New("invalid_csv")
)

var validate = validator.New()

// Normalize trims the free-text fields and defaults a missing unit to grams.
func (in RecordInput) Normalize() RecordInput {
	in.WorkOrder = strings.TrimSpace(in.WorkOrder)
	in.AssetID = strings.TrimSpace(in.AssetID)
	in.LubricantType = strings.TrimSpace(in.LubricantType)
	if strings.TrimSpace(string(in.Unit)) == "" {
		in.Unit = catalog.UnitGram
	}
	return in
}

// Validate reports the first failing field as a domain error.
func (in RecordInput) Validate() error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	switch fieldErrs[0].Field() {
	case "WorkOrder":
		return ErrInvalidWorkOrder
	case "AssetID":
		return ErrInvalidAsset
	case "LubricantType":
		return ErrInvalidLubricantType
	case "Amount":
		return ErrInvalidAmount
	case "Unit":
		return ErrInvalidUnit
	default:
		return ErrInvalidTimestamp
	}
}

// NewRecord builds a persisted-shape record from validated input.
func NewRecord(id string, in RecordInput) (Record, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Record{}, ErrInvalidID
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return Record{}, err
	}
	return Record{
		ID:            id,
		WorkOrder:     in.WorkOrder,
		AssetID:       in.AssetID,
		LubricantType: in.LubricantType,
		Amount:        in.Amount,
		Unit:          in.Unit,
		Timestamp:     in.Timestamp,
	}, nil
}

// Input returns the editable fields of r.
func (r Record) Input() RecordInput {
	return RecordInput{
		WorkOrder:     r.WorkOrder,
		AssetID:       r.AssetID,
		LubricantType: r.LubricantType,
		Amount:        r.Amount,
		Unit:          r.Unit,
		Timestamp:     r.Timestamp,
	}
}

// CheckUnitFamily verifies that the unit matches the lubricant family. Unknown
// lubricants pass.
func CheckUnitFamily(c *catalog.Catalog, in RecordInput) error {
	if c == nil {
		return nil
	}
	lub, ok := c.Lookup(in.LubricantType)
	if !ok {
		return nil
	}
	if lub.Unit != in.Unit {
		return ErrUnitMismatch
	}
	return nil
}
