package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"navbridge/internal/navmesh"
)

func CompileCmd() *cobra.Command {
	var outPath string
	c := &cobra.Command{
		Use:   "compile <mesh.hjson>",
		Short: "compile an hjson mesh description into a .nav file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			if outPath == "" {
				outPath = strings.TrimSuffix(src, filepath.Ext(src)) + ".nav"
			}
			file, err := navmesh.ReadFile(src)
			if err != nil {
				return fmt.Errorf("read %s: %w", src, err)
			}
			mesh, err := file.Build()
			if err != nil {
				return fmt.Errorf("validate %s: %w", src, err)
			}
			data, err := navmesh.EncodeBinary(file)
			if err != nil {
				return fmt.Errorf("encode %s: %w", src, err)
			}
			if err := writeFileAtomic(outPath, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compiled %s: %d areas, %d ladders -> %s\n", src, mesh.AreaCount(), mesh.LadderCount(), outPath)
			return nil
		},
	}
	c.Flags().StringVar(&outPath, "out", "", "output path (defaults to the source with a .nav extension)")
	return c
}

// writeFileAtomic writes through a temp file so readers never see a partial
// file.
func writeFileAtomic(outPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace %s: %w", outPath, err)
	}
	return nil
}
