// Package task runs the emotion adapter over an image and its face regions
// and assembles the graphics and numeric outputs.
package task

import (
	"context"
	"fmt"
	"image"
	"io"

	"github.com/Brownie44l1/ferplus/internal/log"
	"github.com/Brownie44l1/ferplus/internal/model"
	"github.com/Brownie44l1/ferplus/internal/preprocess"
	"github.com/pkg/errors"
)

const (
	LayerName      = "EmotionFerPlus"
	FullImageLabel = "Full image"
	ProgressSteps  = 4

	// labels are anchored this fraction of the region size inside its corner
	labelOffset = 0.05
)

// Predictor is the part of the adapter a run needs.
type Predictor interface {
	Predict(ctx context.Context, region image.Image, label string, reload *model.Settings) (*model.Prediction, error)
	Labels() []string
}

// ProgressFunc is called after each of the ProgressSteps steps of a run.
type ProgressFunc func(step, total int)

type Task struct {
	predictor Predictor
	params    Params
	progress  ProgressFunc
}

func New(p Predictor, params Params) *Task {
	return &Task{predictor: p, params: params}
}

func (t *Task) Params() Params { return t.params }

// SetParams replaces the parameters. With Update set the next run reloads the
// network from the new settings.
func (t *Task) SetParams(p Params) { t.params = p }

func (t *Task) OnProgress(fn ProgressFunc) { t.progress = fn }

// Close releases the predictor when it holds resources.
func (t *Task) Close() error {
	if c, ok := t.predictor.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *Task) step(n int) {
	if t.progress != nil {
		t.progress(n, ProgressSteps)
	}
}

func regionLabel(i int) string {
	return fmt.Sprintf("Face #%d", i+1)
}

// Run predicts every region of in, or the whole image when no region is
// given. The first failure aborts the run.
func (t *Task) Run(ctx context.Context, in Input) (*Output, error) {
	if in.Image == nil {
		return nil, model.NewError(model.KindInput, "run", errors.New("no input image"))
	}

	for i, r := range in.Regions {
		if err := r.Validate(); err != nil {
			return nil, errors.Wrapf(err, "run %s", regionLabel(i))
		}
	}

	var reload *model.Settings
	if in.Reload || t.params.Update {
		s := t.params.Settings()
		if err := s.Validate(); err != nil {
			return nil, err
		}
		reload = &s
	}
	t.step(1)

	labels := t.predictor.Labels()
	out := &Output{
		Image: in.Image,
		Graphics: Graphics{
			Layer:      LayerName,
			ImageIndex: 0,
		},
		Table: Table{Headers: labels},
	}
	t.step(2)

	gray := preprocess.Gray(in.Image)
	t.step(3)

	predict := func(region image.Image, label string, anchor image.Rectangle) error {
		pred, err := t.predictor.Predict(ctx, region, label, reload)
		if err != nil {
			return err
		}
		// only the first prediction of a run carries the reload request
		reload = nil

		w, h := float64(anchor.Dx()), float64(anchor.Dy())
		out.Graphics.Items = append(out.Graphics.Items, Text{
			Text: pred.Label,
			X:    float64(anchor.Min.X) + labelOffset*w,
			Y:    float64(anchor.Min.Y) + labelOffset*h,
		})
		out.Table.Rows = append(out.Table.Rows, Row{Label: label, Values: pred.Scores})
		out.Predictions = append(out.Predictions, *pred)
		return nil
	}

	if len(in.Regions) > 0 {
		for i, r := range in.Regions {
			rect := r.Rectangle()
			label := regionLabel(i)
			if err := predict(preprocess.Crop(gray, rect), label, rect); err != nil {
				return nil, errors.Wrapf(err, "run %s", label)
			}
		}
	} else {
		if err := predict(gray, FullImageLabel, gray.Bounds()); err != nil {
			return nil, errors.Wrapf(err, "run %s", FullImageLabel)
		}
	}
	t.step(4)

	t.params.Update = false
	log.Debug(log.Fields{"regions": len(in.Regions), "predictions": len(out.Predictions)}, "[task.Run] done")
	return out, nil
}
