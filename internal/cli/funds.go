package cli

import (
	"fmt"

	"insurance-vault-go/internal/units"

	"github.com/spf13/cobra"
)

// NewDepositCommand creates the deposit command.
func NewDepositCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deposit <vault> <amount>",
		Short: "Deposit USDC into a vault, approving it first when needed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			vault, err := parseAddress("vault", args[0])
			if err != nil {
				return err
			}
			amount, err := units.ParseUSDC(args[1])
			if err != nil {
				return err
			}

			services, _, err := opts.load(ctx)
			if err != nil {
				return err
			}
			result, err := services.Orchestrator.Deposit(ctx, vault, amount)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printTx(cmd.OutOrStdout(), "Deposited "+units.FormatUSD(amount), result)
			return nil
		},
	}
}

// NewWithdrawCommand creates the withdraw command.
func NewWithdrawCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <vault> <amount>",
		Short: "Withdraw USDC from a vault, up to the withdrawable maximum",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			vault, err := parseAddress("vault", args[0])
			if err != nil {
				return err
			}
			amount, err := units.ParseUSDC(args[1])
			if err != nil {
				return err
			}

			services, _, err := opts.load(ctx)
			if err != nil {
				return err
			}
			result, err := services.Orchestrator.Withdraw(ctx, vault, amount)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printTx(cmd.OutOrStdout(), "Withdrew "+units.FormatUSD(amount), result)
			return nil
		},
	}
}

// MintOptions holds flags for the mint command.
type MintOptions struct {
	*RootOptions
	To string
}

// NewMintCommand creates the mint command.
func NewMintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mint <amount>",
		Short: "Mint demo USDC",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			amount, err := units.ParseUSDC(args[0])
			if err != nil {
				return err
			}

			services, _, err := opts.load(ctx)
			if err != nil {
				return err
			}
			to := services.Ledger.Sender()
			if opts.To != "" {
				if to, err = parseAddress("recipient", opts.To); err != nil {
					return err
				}
			}

			result, err := services.Ledger.Mint(ctx, to, amount)
			if err != nil {
				return err
			}
			balance, err := services.Ledger.AssetBalance(ctx, to)
			if err != nil {
				return fmt.Errorf("unable to read balance: %w", err)
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, struct {
					TxHash  string
					Balance string
				}{result.TxHash, balance.String()})
			}
			printTx(out, fmt.Sprintf("Minted %s to %s", units.FormatUSD(amount), units.ShortenAddress(to.Hex())), result)
			fmt.Fprintf(out, "  balance %s\n", units.FormatUSD(balance))
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.To, "to", "", "recipient (defaults to the sender)")

	return cmd
}
