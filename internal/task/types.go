package task

import (
	"image"

	"github.com/Brownie44l1/ferplus/internal/model"
	"github.com/pkg/errors"
)

// Params are the user facing settings of the task.
type Params struct {
	Backend   model.Backend `json:"backend" validate:"required"`
	Target    model.Target  `json:"target" validate:"required"`
	ModelPath string        `json:"model_path" validate:"required"`
	// Update asks for the network to be reloaded on the next run.
	Update bool `json:"update"`
}

func DefaultParams() Params {
	return Params{
		Backend:   model.BackendDefault,
		Target:    model.TargetCPU,
		ModelPath: model.DefaultModelPath,
	}
}

func (p Params) Settings() model.Settings {
	return model.Settings{
		ModelPath: p.ModelPath,
		Backend:   p.Backend,
		Target:    p.Target,
	}
}

// Rect is a face rectangle in source image pixels, relative to the image's
// top-left corner.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate rejects rectangles without a positive width and height.
func (r Rect) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return model.NewError(model.KindInput, "region",
			errors.Errorf("width and height must be positive, got %gx%g", r.Width, r.Height))
	}
	return nil
}

// Rectangle truncates to whole pixels the same way the annotation anchor does.
func (r Rect) Rectangle() image.Rectangle {
	x, y := int(r.X), int(r.Y)
	return image.Rect(x, y, x+int(r.Width), y+int(r.Height))
}

type Input struct {
	Image   image.Image
	Regions []Rect
	// Reload forces a fresh network for this run.
	Reload bool
}

// Text is a label drawn at a position of the source image.
type Text struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Graphics is the annotation layer produced by a run.
type Graphics struct {
	Layer      string `json:"layer"`
	ImageIndex int    `json:"image_index"`
	Items      []Text `json:"items"`
}

// Row holds the raw scores of one region.
type Row struct {
	Label  string    `json:"label"`
	Values []float32 `json:"values"`
}

// Table is the numeric output: one row per region, one column per class.
type Table struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

type Output struct {
	Image       image.Image        `json:"-"`
	Graphics    Graphics           `json:"graphics"`
	Table       Table              `json:"table"`
	Predictions []model.Prediction `json:"predictions"`
}

