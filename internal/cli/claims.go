package cli

import (
	"fmt"
	"io"

	"insurance-vault-go/internal/claims"
	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/units"

	"github.com/spf13/cobra"
)

func printTx(w io.Writer, verb string, result *models.TxResult) {
	fmt.Fprintf(w, "✓ %s (tx %s)\n", verb, result.TxHash)
	if result.ReceiptId != nil {
		fmt.Fprintf(w, "  receipt #%d\n", *result.ReceiptId)
	}
	if result.Shares != nil {
		fmt.Fprintf(w, "  shares %s\n", units.FormatShares(result.Shares))
	}
	for _, ev := range result.Events {
		fmt.Fprintf(w, "  %s receipt #%d amount %s\n", ev.Name, ev.ReceiptId, units.FormatUSD(ev.Amount))
	}
}

// TriggerOptions holds flags for the trigger command.
type TriggerOptions struct {
	*RootOptions
	Amount string
}

// NewTriggerCommand creates the trigger command.
func NewTriggerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TriggerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trigger <vault> <policy-id>",
		Short: "Trigger a claim using the policy's verification path",
		Long: `Trigger a claim on one vault's policy.

ON_CHAIN policies call checkClaim, ORACLE_DEPENDENT policies report the oracle
event and OFF_CHAIN policies submit a claim for --amount USDC, which must not
exceed the policy coverage.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			vault, err := parseAddress("vault", args[0])
			if err != nil {
				return err
			}
			policyId, err := parseId("policy id", args[1])
			if err != nil {
				return err
			}

			services, _, err := opts.load(ctx)
			if err != nil {
				return err
			}
			policy, err := services.Ledger.GetPolicy(ctx, policyId)
			if err != nil {
				return fmt.Errorf("unable to read policy %d: %w", policyId, err)
			}

			req := claims.TriggerRequest{Vault: vault, Policy: policy}
			if policy.VerificationType == models.VerificationOffChain {
				if opts.Amount == "" {
					return fmt.Errorf("%w: --amount is required for OFF_CHAIN policies", claims.ErrInvalidClaimAmount)
				}
				if req.Amount, err = units.ParseUSDC(opts.Amount); err != nil {
					return err
				}
			}

			result, err := services.Orchestrator.Trigger(ctx, req)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printTx(cmd.OutOrStdout(), fmt.Sprintf("Claim triggered for policy #%d", policyId), result)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Amount, "amount", "", "claim amount in USDC (OFF_CHAIN policies)")

	return cmd
}

// NewTriggerAllCommand creates the trigger-all command.
func NewTriggerAllCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger-all <policy-id>",
		Short: "Trigger an ON_CHAIN policy in every vault",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			policyId, err := parseId("policy id", args[0])
			if err != nil {
				return err
			}

			services, cfg, err := opts.load(ctx)
			if err != nil {
				return err
			}
			policy, err := services.Ledger.GetPolicy(ctx, policyId)
			if err != nil {
				return fmt.Errorf("unable to read policy %d: %w", policyId, err)
			}
			vaults, err := services.VaultSet(ctx, cfg.Poller.Vaults)
			if err != nil {
				return err
			}

			batch, err := services.Orchestrator.TriggerAll(ctx, vaults, policy)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				type outcome struct {
					Vault  string
					Result *models.TxResult `json:",omitempty"`
					Error  string           `json:",omitempty"`
				}
				var all []outcome
				for _, o := range batch.Succeeded {
					all = append(all, outcome{Vault: o.Vault.Hex(), Result: o.Result})
				}
				for _, o := range batch.Failed {
					all = append(all, outcome{Vault: o.Vault.Hex(), Error: describeError(o.Err)})
				}
				return writeJSON(out, all)
			}

			for _, o := range batch.Succeeded {
				printTx(out, "Triggered "+units.ShortenAddress(o.Vault.Hex()), o.Result)
			}
			for _, o := range batch.Failed {
				fmt.Fprintf(out, "✗ %s: %s\n", units.ShortenAddress(o.Vault.Hex()), describeError(o.Err))
			}
			fmt.Fprintf(out, "%d succeeded, %d failed\n", len(batch.Succeeded), len(batch.Failed))
			if len(batch.Succeeded) == 0 && len(batch.Failed) > 0 {
				return fmt.Errorf("policy %d could not be triggered in any vault", policyId)
			}
			return nil
		},
	}
}

// NewExerciseCommand creates the exercise command.
func NewExerciseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exercise <vault> <receipt-id>",
		Short: "Pay out a pending claim receipt from the vault's buffer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			vault, err := parseAddress("vault", args[0])
			if err != nil {
				return err
			}
			receiptId, err := parseId("receipt id", args[1])
			if err != nil {
				return err
			}

			services, _, err := opts.load(ctx)
			if err != nil {
				return err
			}
			result, err := services.Orchestrator.Exercise(ctx, vault, receiptId)
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), result)
			}
			printTx(cmd.OutOrStdout(), fmt.Sprintf("Receipt #%d exercised", receiptId), result)
			return nil
		},
	}
}
