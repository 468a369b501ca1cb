package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/iliyamo/pcbang-kiosk/internal/database"
	"github.com/iliyamo/pcbang-kiosk/internal/repository"
)

var seatCount int

func init() {
	rootCmd.AddCommand(seatsCmd)
	seatsCmd.AddCommand(seatsInitCmd)
	seatsInitCmd.Flags().IntVar(&seatCount, "count", 0, "number of seats (default SEAT_COUNT)")
}

var seatsCmd = &cobra.Command{
	Use:   "seats",
	Short: "Manage the venue's seat rows",
}

var seatsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create seats 1..count that do not exist yet",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := setup()
		n := seatCount
		if n <= 0 {
			n = cfg.SeatCount
		}
		db, err := database.Open(dbOptions(cfg))
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.QueryTimeout)
		defer cancel()
		created, err := repository.NewSeatRepo(db).EnsureSeats(ctx, n)
		if err != nil {
			return err
		}
		slog.Info("seats initialised", slog.Int("count", n), slog.Int64("created", created))
		return nil
	},
}
