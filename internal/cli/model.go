package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Brownie44l1/ferplus/internal/hub"
	"github.com/Brownie44l1/ferplus/internal/model"
	"github.com/Brownie44l1/ferplus/internal/plugin"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var forceFetch bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the model weights from the hub if they are missing",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := hub.New(cfg.HubURL, plugin.Name)
		client.Progress = os.Stderr

		if forceFetch {
			src, err := client.ModelURL()
			if err != nil {
				return model.NewError(model.KindNotFound, "fetch", err)
			}
			if err := client.Download(cmd.Context(), src, cfg.ModelPath); err != nil {
				return model.NewError(model.KindNotFound, "fetch", err)
			}
		} else if err := client.Ensure(cmd.Context(), cfg.ModelPath); err != nil {
			return model.NewError(model.KindNotFound, "fetch", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Model ready at %s\n", cfg.ModelPath)
		return nil
	},
}

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List inference backends and the targets each accepts",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := table.NewWriter()
		tw.SetOutputMirror(cmd.OutOrStdout())
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"Backend", "Name", "Targets"})
		for _, b := range model.Backends() {
			var targets []string
			for _, t := range model.ValidTargets(b) {
				targets = append(targets, fmt.Sprintf("%s (%s)", string(t), t.String()))
			}
			tw.AppendRow(table.Row{string(b), b.String(), strings.Join(targets, ", ")})
		}
		tw.Render()
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print plugin metadata and the configured model",
	RunE: func(cmd *cobra.Command, args []string) error {
		labels, err := model.LoadLabels(cfg.LabelsPath)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"plugin":   plugin.Info(),
			"classes":  labels,
			"settings": cfg.Settings(),
		})
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&forceFetch, "force", false, "download even if the file exists")
	rootCmd.AddCommand(fetchCmd, backendsCmd, infoCmd)
}
