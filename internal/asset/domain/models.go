package domain

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidAsset  = errors.New("invalid_asset")
	ErrInvalidPhoto  = errors.New("invalid_photo")
	ErrImageNotFound = errors.New("image_not_found")
)

// FallbackAssets is served when the catalog file cannot be read.
var FallbackAssets = []string{
	"BRU - 001 - ENTRY ROLL - BRIDLE ROLL UNIT 2 - Driven Side",
	"BRU - 002 - ENTRY ROLL - BRIDLE ROLL UNIT 2 - OPS Side",
	"BRU - 003 - MIDDLE ROLL - BRIDLE ROLL UNIT 2 - Driven Side",
	"DFR - 286 - DELFECTOR ROLL ASSEMBLY E3A - OPS Side",
}

type Field struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Profile is the reference sheet of one asset.
type Profile struct {
	Name     string  `json:"name"`
	Found    bool    `json:"found"`
	Custom   bool    `json:"custom"`
	HasImage bool    `json:"has_image"`
	Fields   []Field `json:"fields"`
}

// CustomAsset is an operator-defined asset. The JSON keys match the stored
// CUSTOM_ASSETS_V1 documents.
type CustomAsset struct {
	ID                    string  `json:"id" validate:"required,max=256"`
	LineSection           string  `json:"Line Section"`
	EquipmentID           string  `json:"Equipment / Asset ID"`
	ManufCodePillowBlock  string  `json:"Manufacturer Code Pillow Block"`
	ManufPillowBlock      string  `json:"Manufacturer Pillow Block"`
	ManufCodeBearing      string  `json:"Manufacturer Code Bearing"`
	ManufBearing          string  `json:"Manufacturer Bearing"`
	BearingType           string  `json:"Bearing Type"`
	LubricantType         string  `json:"Lubricant Type"`
	GreaseFittingPosition string  `json:"Grease Fitting Position"`
	BearingVolume         float64 `json:"Bearing Volume" validate:"gte=0"`
	FirstFillPercent      float64 `json:"Pillow Block 1st Fill %" validate:"gte=0"`
	FirstFillGrams        float64 `json:"Pillow Block 1st Fill g" validate:"gte=0"`
	LubricationGrams      float64 `json:"Lubrication Grease (g)" validate:"gte=0"`
	PeriodWeeks           float64 `json:"Lubrication Period (weeks)" validate:"gte=0"`
	LubPointID            string  `json:"Lub Point ID"`
	OrientationPoint      string  `json:"Orientation Point"`
	PhotoData             string  `json:"photoData"`
}

var validate = validator.New()

// Validate trims the asset and checks the mandatory id and photo.
func (a *CustomAsset) Validate() error {
	a.ID = strings.TrimSpace(a.ID)
	a.EquipmentID = a.ID
	if err := validate.Struct(a); err != nil {
		return ErrInvalidAsset
	}
	if strings.TrimSpace(a.PhotoData) == "" {
		return ErrInvalidPhoto
	}
	if a.OrientationPoint == "" {
		a.OrientationPoint = "Driven Side"
	}
	return nil
}

// Image is either a file on disk or decoded inline photo data.
type Image struct {
	Path        string
	Data        []byte
	ContentType string
}

type Service interface {
	// List merges the stored asset list, assets seen in records and the
	// fallback assets, deduplicated and sorted.
	List(ctx context.Context) ([]string, error)
	// CatalogIDs lists the catalog file ids, or the fallback assets when the
	// file is unusable.
	CatalogIDs(ctx context.Context) []string
	Profile(ctx context.Context, name string) (Profile, error)
	Image(ctx context.Context, name string) (Image, error)
	Custom(ctx context.Context) ([]CustomAsset, error)
	Upsert(ctx context.Context, asset CustomAsset) (CustomAsset, error)
}
