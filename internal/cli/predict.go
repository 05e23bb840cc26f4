package cli

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/Brownie44l1/ferplus/internal/render"
	"github.com/Brownie44l1/ferplus/internal/task"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

type predictOptions struct {
	Regions     []string
	RegionsFile string
	Annotate    string
	Format      string
	Softmax     bool
	Quiet       bool
}

var predictOpts predictOptions

var predictCmd = &cobra.Command{
	Use:   "predict <image>",
	Short: "Predict the emotion of each face region, or of the whole image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := render.ParseFormat(predictOpts.Format)
		if err != nil {
			return err
		}

		regions, err := collectRegions(predictOpts.Regions, predictOpts.RegionsFile)
		if err != nil {
			return err
		}

		img, err := imaging.Open(args[0], imaging.AutoOrientation(true))
		if err != nil {
			return errors.Wrapf(err, "failed to open %s", args[0])
		}

		t, err := newTask(cfg)
		if err != nil {
			return err
		}
		defer t.Close()

		if !predictOpts.Quiet {
			bar := progressbar.NewOptions(task.ProgressSteps,
				progressbar.OptionSetDescription("Recognizing emotions"),
				progressbar.OptionSetWriter(os.Stderr),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			t.OnProgress(func(step, total int) { bar.Set(step) })
		}

		out, err := t.Run(cmd.Context(), task.Input{Image: img, Regions: regions})
		if err != nil {
			return err
		}

		if err := render.WriteTable(cmd.OutOrStdout(), out.Table, render.TableOptions{
			Format:  format,
			Softmax: predictOpts.Softmax,
		}); err != nil {
			return err
		}

		if predictOpts.Annotate != "" {
			annotated := render.Annotate(out.Image, out.Graphics, regions)
			if err := render.SavePNG(predictOpts.Annotate, annotated); err != nil {
				return errors.Wrapf(err, "failed to write %s", predictOpts.Annotate)
			}
		}
		return nil
	},
}

// collectRegions merges --region flags with the rectangles of a JSON file,
// flags first.
func collectRegions(flags []string, file string) ([]task.Rect, error) {
	var regions []task.Rect
	for _, s := range flags {
		r, err := parseRegion(s)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read regions file")
		}
		var fromFile []task.Rect
		if err := json.Unmarshal(data, &fromFile); err != nil {
			return nil, errors.Wrap(err, "failed to parse regions file")
		}
		regions = append(regions, fromFile...)
	}
	return regions, nil
}

// parseRegion reads "x,y,width,height".
func parseRegion(s string) (task.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return task.Rect{}, errors.Errorf("region %q: expected x,y,width,height", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return task.Rect{}, errors.Wrapf(err, "region %q", s)
		}
		v[i] = f
	}
	if v[2] <= 0 || v[3] <= 0 {
		return task.Rect{}, errors.Errorf("region %q: width and height must be positive", s)
	}
	return task.Rect{X: v[0], Y: v[1], Width: v[2], Height: v[3]}, nil
}

func init() {
	f := predictCmd.Flags()
	f.StringArrayVarP(&predictOpts.Regions, "region", "r", nil, "face rectangle x,y,width,height (repeatable)")
	f.StringVar(&predictOpts.RegionsFile, "regions-file", "", "JSON file with an array of {x,y,width,height}")
	f.StringVarP(&predictOpts.Annotate, "annotate", "o", "", "write an annotated PNG to this path")
	f.StringVarP(&predictOpts.Format, "format", "f", "table", "output format: table, csv, markdown, json")
	f.BoolVar(&predictOpts.Softmax, "softmax", false, "print normalized probabilities instead of raw scores")
	f.BoolVarP(&predictOpts.Quiet, "quiet", "q", false, "hide the progress bar")

	rootCmd.AddCommand(predictCmd)
}
