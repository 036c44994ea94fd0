package main

import (
	"fmt"

	"bookstore/internal/infra/messaging"
	infraRepo "bookstore/internal/infra/repository"
	"bookstore/internal/usecase"
	"bookstore/internal/worker"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Release every expired reservation now and return the stock",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gdb, err := connect()
			if err != nil {
				return err
			}
			if batch <= 0 {
				batch = cfg.SweepBatch
			}

			logger := newLogger()
			publisher := messaging.New(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
			defer publisher.Close()

			cartUC := usecase.NewCartUsecase(infraRepo.NewTxManagerGorm(gdb), publisher, logger, usecase.CartConfig{
				DefaultTTL:     cfg.ReservationTTL,
				MaxTTL:         cfg.ReservationMaxTTL,
				PublishTimeout: cfg.EventPublishTimeout,
			})

			res, err := worker.NewSweeper(cartUC, 0, batch, logger).RunOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "swept %d carts, released %d units\n", res.Carts, res.Units)
			if err != nil {
				return fmt.Errorf("sweep incomplete: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&batch, "batch", "n", 0, "carts per batch (default CART_SWEEP_BATCH)")
	return cmd
}
