package main

import (
	"fmt"

	"bookstore/internal/infra/db"

	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the sample catalog (existing titles are skipped)",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gdb, err := connect()
			if err != nil {
				return err
			}
			n, err := db.SeedCatalog(cmd.Context(), gdb, db.SampleCatalog())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products\n", n)
			return nil
		},
	}
}
