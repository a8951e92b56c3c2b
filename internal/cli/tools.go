package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/uzlow/webtools/internal/config"
	"github.com/uzlow/webtools/pkg/manifest"
	"github.com/uzlow/webtools/pkg/registry"
	"github.com/uzlow/webtools/pkg/tools"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List discovered tools and rejected candidates",
	RunE:  runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}

	toolCfg := tools.Config{
		OctraRPCURL: cfg.Tools.OctraRPCURL,
		HTTPTimeout: time.Duration(cfg.Tools.HTTPTimeoutSeconds) * time.Second,
	}

	table := manifest.NewHandlerTable()
	if err := tools.BindEntrypoints(table, toolCfg); err != nil {
		return err
	}

	reg := registry.New(registry.MultiSource{
		tools.Source(toolCfg),
		manifest.NewDir(cfg.Tools.ManifestDir, table, zerolog.Nop()),
	}, zerolog.Nop())
	if err := reg.Load(cmd.Context()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Tools (%d):\n", reg.Len())
	for _, def := range reg.Definitions() {
		fields := def.Schema.Len()
		fmt.Fprintf(out, "  %-20s %-8s fields=%-3d %s\n", def.Name, def.Source, fields, def.Description)
	}

	rejections := reg.Rejections()
	if len(rejections) > 0 {
		fmt.Fprintf(out, "Rejected (%d):\n", len(rejections))
		for _, r := range rejections {
			fmt.Fprintf(out, "  %-20s %s\n", r.Tool, r.Reason)
		}
	}
	return nil
}
