package cli

import (
	"fmt"
	"strconv"
	"time"

	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/units"

	"github.com/spf13/cobra"
)

// btcPriceDecimals is the precision of the oracle BTC/USD feed
const btcPriceDecimals int32 = 8

// parseSeconds accepts either a plain number of seconds or a Go duration
func parseSeconds(value string) (uint64, error) {
	if n, err := strconv.ParseUint(value, 10, 64); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < time.Second {
		return 0, fmt.Errorf("%w: invalid duration %q", models.ErrInputValidation, value)
	}
	return uint64(d / time.Second), nil
}

// NewAdvanceTimeCommand creates the advance-time command.
func NewAdvanceTimeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "advance-time <seconds|duration>",
		Short: "Move the protocol's virtual clock forward",
		Example: `  vaultctl advance-time 86400
  vaultctl advance-time 72h`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			seconds, err := parseSeconds(args[0])
			if err != nil {
				return err
			}

			services, _, err := opts.load(ctx)
			if err != nil {
				return err
			}
			result, err := services.Ledger.AdvanceTime(ctx, seconds)
			if err != nil {
				return err
			}
			now, err := services.Ledger.CurrentTime(ctx)
			if err != nil {
				return fmt.Errorf("unable to read current time: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, struct {
					TxHash      string
					CurrentTime uint64
				}{result.TxHash, now})
			}
			printTx(out, fmt.Sprintf("Advanced %ds", seconds), result)
			fmt.Fprintf(out, "  virtual time %s\n", time.Unix(int64(now), 0).UTC().Format(time.RFC3339))
			return nil
		},
	}
}

// NewOracleCommand creates the oracle command group.
func NewOracleCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "oracle",
		Short: "Inspect and drive the mock oracle",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the BTC price and flight status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, _, err := opts.load(ctx)
			if err != nil {
				return err
			}
			status, err := services.Ledger.OracleStatus(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, status)
			}
			flight := "on time"
			if status.FlightDelayed {
				flight = "delayed"
			}
			fmt.Fprintf(out, "BTC price: $%s (updated %d)\n", units.FormatFixed(status.BtcPrice, btcPriceDecimals), status.BtcUpdatedAt)
			fmt.Fprintf(out, "Flight:    %s (updated %d)\n", flight, status.FlightUpdatedAt)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-price <usd>",
		Short: "Set the BTC/USD price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			price, err := units.ParseFixed(args[0], btcPriceDecimals)
			if err != nil {
				return err
			}
			services, _, err := opts.load(ctx)
			if err != nil {
				return err
			}
			result, err := services.Ledger.SetBtcPrice(ctx, price)
			if err != nil {
				return err
			}
			printTx(cmd.OutOrStdout(), "BTC price set to $"+units.FormatFixed(price, btcPriceDecimals), result)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:       "set-flight <delayed|on-time>",
		Short:     "Set the flight status",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"delayed", "on-time"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var delayed bool
			switch args[0] {
			case "delayed":
				delayed = true
			case "on-time":
			default:
				return fmt.Errorf("%w: flight status must be delayed or on-time", models.ErrInputValidation)
			}

			ctx := cmd.Context()
			services, _, err := opts.load(ctx)
			if err != nil {
				return err
			}
			result, err := services.Ledger.SetFlightStatus(ctx, delayed)
			if err != nil {
				return err
			}
			printTx(cmd.OutOrStdout(), "Flight marked "+args[0], result)
			return nil
		},
	})

	return cmd
}
