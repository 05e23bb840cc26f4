// Package cli implements the ferplus command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/ferplus/internal/config"
	"github.com/Brownie44l1/ferplus/internal/model"
	"github.com/Brownie44l1/ferplus/internal/plugin"
	"github.com/Brownie44l1/ferplus/internal/registry"
	"github.com/Brownie44l1/ferplus/internal/task"
	"github.com/spf13/cobra"
)

// Options are the persistent flags shared by every subcommand. Empty values
// fall back to the environment (see config.FromEnv).
type Options struct {
	ModelPath   string
	LabelsPath  string
	Backend     string
	Target      string
	HubURL      string
	LibraryPath string
}

var (
	opts Options
	// cfg is resolved once per invocation in PersistentPreRunE
	cfg *config.Config
)

// Version is the application version.
const Version = "1.2.0"

var rootCmd = &cobra.Command{
	Use:           "ferplus",
	Short:         "Facial emotion recognition with the FER+ network",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = resolveConfig(opts)
		return err
	},
}

func resolveConfig(o Options) (*config.Config, error) {
	c, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if o.ModelPath != "" {
		c.ModelPath = o.ModelPath
	}
	if o.LabelsPath != "" {
		c.LabelsPath = o.LabelsPath
	}
	if o.HubURL != "" {
		c.HubURL = o.HubURL
	}
	if o.LibraryPath != "" {
		c.LibraryPath = o.LibraryPath
	}
	if o.Backend != "" {
		if c.Backend, err = model.ParseBackend(o.Backend); err != nil {
			return nil, err
		}
		c.Target = model.DefaultTarget(c.Backend)
	}
	if o.Target != "" {
		if c.Target, err = model.ParseTarget(o.Target); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func newFactory(c *config.Config) *plugin.Factory {
	return &plugin.Factory{
		LabelsPath: c.LabelsPath,
		HubURL:     c.HubURL,
		Loader:     &model.ONNXLoader{LibraryPath: c.LibraryPath},
		Progress:   os.Stderr,
	}
}

// newTask registers the plugin and creates a task from the resolved config.
func newTask(c *config.Config) (*task.Task, error) {
	if _, ok := registry.Lookup(plugin.Name); !ok {
		if err := registry.Register(newFactory(c)); err != nil {
			return nil, err
		}
	}
	params := c.Params()
	return registry.Create(plugin.Name, &params)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes configuration (2), missing model (3) and load (4) failures.
func exitCode(err error) int {
	switch model.KindOf(err) {
	case model.KindConfiguration:
		return 2
	case model.KindNotFound:
		return 3
	case model.KindLoad:
		return 4
	default:
		return 1
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.ModelPath, "model", "", "path to the ONNX weights (env "+config.EnvModelPath+")")
	pf.StringVar(&opts.LabelsPath, "labels", "", "path to the class names file (env "+config.EnvLabelsPath+")")
	pf.StringVar(&opts.Backend, "backend", "", "inference backend: default, cpu, openvino, cuda, tensorrt (env "+config.EnvBackend+")")
	pf.StringVar(&opts.Target, "target", "", "device target for the backend (env "+config.EnvTarget+")")
	pf.StringVar(&opts.HubURL, "hub", "", "model hub base url used when the weights are missing (env "+config.EnvHubURL+")")
	pf.StringVar(&opts.LibraryPath, "ort-lib", "", "onnxruntime shared library path (env "+config.EnvLibraryPath+")")
}
