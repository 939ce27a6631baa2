// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/loopcast/internal/janitor"
)

func newCleanCmd(opts *rootOptions) *cobra.Command {
	var uploads bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove downloaded temp files (and optionally uploads)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			removed := janitor.CleanAll(cfg.Storage.TempDir)
			if uploads {
				removed += janitor.CleanAll(cfg.Storage.UploadDir)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", removed)
			return err
		},
	}
	cmd.Flags().BoolVar(&uploads, "uploads", false, "also empty the upload directory")
	return cmd
}
