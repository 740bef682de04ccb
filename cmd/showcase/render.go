package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	showcase "github.com/flywave/go-showcase"
)

func renderCmd() *cobra.Command {
	var (
		out    string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "render --out scene.mst|scene.glb",
		Short: "Load the scene, engrave the text and export it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyEngraving(cmd, &cfg)

			sc, err := showcase.New(cfg, showcase.NewRouter(assetDir))
			if err != nil {
				return err
			}
			if err := sc.Load(ctx); err != nil {
				if strict {
					return err
				}
				// The scene keeps whatever did load.
				cmd.PrintErrln("warning:", err)
			}

			f, err := os.Create(out)
			if err != nil {
				return errors.Wrap(err, "create output")
			}
			defer f.Close()
			switch strings.ToLower(filepath.Ext(out)) {
			case ".glb":
				err = showcase.ExportGLB(sc.Scene, f)
			case ".mst":
				_, err = showcase.ExportMst(sc.Scene, f)
			default:
				err = errors.Errorf("unknown output format %q, use .mst or .glb", filepath.Ext(out))
			}
			if err != nil {
				return err
			}
			fr := sc.Frame()
			cmd.Printf("wrote %s: %d objects, %d triangles\n", out, fr.Objects, fr.Triangles)
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, .mst or .glb")
	cmd.Flags().String("font", "", "engraving font id")
	cmd.Flags().String("line1", "", "engraving text of the first line")
	cmd.Flags().String("line2", "", "engraving text of the second line")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when any asset fails to load")
	cmd.MarkFlagRequired("out")
	return cmd
}

// applyEngraving overrides the configured engraving with the flags given on
// the command line. An explicitly empty line clears it.
func applyEngraving(cmd *cobra.Command, cfg *showcase.Config) {
	flags := cmd.Flags()
	if font, _ := flags.GetString("font"); font != "" {
		cfg.Engraving.Font = font
	}
	for i, name := range []string{"line1", "line2"} {
		if i >= len(cfg.Engraving.Lines) || !flags.Changed(name) {
			continue
		}
		cfg.Engraving.Lines[i].Text, _ = flags.GetString(name)
	}
}
