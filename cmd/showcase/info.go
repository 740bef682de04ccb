package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	showcase "github.com/flywave/go-showcase"
)

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <model.glb|model.gltf|model.obj|model.fbx|model.dae>",
		Short: "List the parts of a model, the names and indices slots refer to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrap(err, "read model")
			}
			dec := showcase.DecoderFactory(filepath.Ext(path))
			if dec == nil {
				return errors.Errorf("unsupported model format %q", filepath.Ext(path))
			}
			if ru, ok := dec.(showcase.ResourceUser); ok {
				dir := showcase.NewDirFetcher(filepath.Dir(path))
				ru.SetResources(showcase.FetchResources(cmd.Context(), dir, filepath.Base(path)))
			}
			model, err := dec.Decode(filepath.Base(path), data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d parts, %d triangles\n\n", model.Name, len(model.Parts), model.Triangles())
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "INDEX\tNAME\tTRIANGLES\tCOLOR\tMIN\tMAX")
			for _, p := range model.Parts {
				color := "-"
				if p.Material != nil {
					color = showcase.HexColor(p.Material.Color)
				}
				lo, hi := p.Bounds.Min, p.Bounds.Max
				fmt.Fprintf(w, "%d\t%s\t%d\t%s\t(%.4f, %.4f, %.4f)\t(%.4f, %.4f, %.4f)\n",
					p.Index, p.Name, p.Triangles(), color, lo[0], lo[1], lo[2], hi[0], hi[1], hi[2])
			}
			return w.Flush()
		},
	}
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective scene config as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return cfg.Write(cmd.OutOrStdout())
		},
	}
}

func fontsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fonts",
		Short: "List the built-in engraving fonts",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range showcase.BuiltinFonts() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", showcase.BuiltinScheme, name)
			}
		},
	}
}
