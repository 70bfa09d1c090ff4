package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"insurance-vault-go/internal/aggregate"
	"insurance-vault-go/internal/common"
	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/units"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// snapshot collects the configured vault set, or only vaults when given
func (o *RootOptions) snapshot(ctx context.Context, vaults ...ethcommon.Address) (*models.Snapshot, error) {
	services, cfg, err := o.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(vaults) == 0 {
		if vaults, err = services.VaultSet(ctx, cfg.Poller.Vaults); err != nil {
			return nil, err
		}
	}
	return services.Collector.Collect(ctx, aggregate.Request{Vaults: vaults, User: o.user()})
}

func printFailures(w io.Writer, snap *models.Snapshot) {
	if !snap.Partial() {
		return
	}
	fmt.Fprintf(w, "\n%d items could not be read:\n", len(snap.Failures))
	for _, f := range snap.Failures {
		fmt.Fprintf(w, "  ✗ %s\n", common.FailureLine(f))
	}
}

// NewVaultsCommand creates the vaults command.
func NewVaultsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vaults",
		Short: "List vaults with TVL, share price and capital breakdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := opts.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, snap.Vaults)
			}

			for _, vs := range snap.Vaults {
				fmt.Fprintln(out)
				for _, line := range common.VaultHeader(vs) {
					fmt.Fprintln(out, line)
				}
				if opts.Verbose {
					for i, pv := range vs.Policies {
						fmt.Fprintln(out, common.BoxPrefix(i == len(vs.Policies)-1)+common.PolicyLine(pv))
					}
				}
			}
			printFailures(out, snap)
			return nil
		},
	}
}

// NewVaultCommand creates the vault command.
func NewVaultCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vault <address>",
		Short: "Show one vault with its policies and claim receipts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddress("vault", args[0])
			if err != nil {
				return err
			}
			snap, err := opts.snapshot(cmd.Context(), addr)
			if err != nil {
				return err
			}
			vs, ok := snap.Vault(addr)
			if !ok {
				printFailures(cmd.ErrOrStderr(), snap)
				return fmt.Errorf("%w: vault %s unavailable", models.ErrNotFound, addr.Hex())
			}

			var receipts []models.ClaimReceipt
			for _, r := range snap.Receipts {
				if r.Vault == addr {
					receipts = append(receipts, r)
				}
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, struct {
					Vault    *models.VaultSnapshot
					Receipts []models.ClaimReceipt
				}{vs, receipts})
			}

			for _, line := range common.VaultHeader(*vs) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, "│")
			for i, pv := range vs.Policies {
				fmt.Fprintln(out, common.BoxPrefix(i == len(vs.Policies)-1)+common.PolicyLine(pv))
			}
			if len(receipts) > 0 {
				fmt.Fprintln(out, "\nClaim receipts:")
				for _, r := range receipts {
					fmt.Fprintln(out, "  "+common.ReceiptLine(r))
				}
			}
			printFailures(out, snap)
			return nil
		},
	}
}

// NewPoliciesCommand creates the policies command.
func NewPoliciesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List every policy in the registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			services, _, err := opts.load(ctx)
			if err != nil {
				return err
			}
			count, err := services.Ledger.GetPolicyCount(ctx)
			if err != nil {
				return fmt.Errorf("unable to read policy count: %w", err)
			}
			offset, err := services.Ledger.TimeOffset(ctx)
			if err != nil {
				return fmt.Errorf("unable to read time offset: %w", err)
			}

			policies := make([]*models.Policy, 0, count)
			for id := uint64(0); id < count; id++ {
				p, err := services.Ledger.GetPolicy(ctx, id)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "policy %d: %s\n", id, describeError(err))
					continue
				}
				policies = append(policies, p)
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, policies)
			}
			fmt.Fprintf(out, "%d policies (virtual clock offset %ds)\n", count, offset)
			for i, p := range policies {
				fmt.Fprintf(out, "%s#%-3d %-24s %-16s coverage %-14s premium %-12s %s\n",
					common.BoxPrefix(i == len(policies)-1), p.Id, p.Name, p.VerificationType,
					units.FormatUSD(p.CoverageAmount), units.FormatUSD(p.PremiumAmount), p.Status)
			}
			return nil
		},
	}
}

// ReceiptsOptions holds flags for the receipts command.
type ReceiptsOptions struct {
	*RootOptions
	Pending   bool
	Exercised bool
	Cached    bool
}

// NewReceiptsCommand creates the receipts command.
func NewReceiptsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReceiptsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "receipts",
		Short: "List claim receipts",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Pending && opts.Exercised {
				return fmt.Errorf("--pending and --exercised are mutually exclusive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			receipts, err := opts.receipts(cmd.Context())
			if err != nil {
				return err
			}

			filtered := receipts[:0]
			for _, r := range receipts {
				if (opts.Pending && r.Exercised) || (opts.Exercised && !r.Exercised) {
					continue
				}
				filtered = append(filtered, r)
			}

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, filtered)
			}
			if len(filtered) == 0 {
				fmt.Fprintln(out, "No claim receipts")
				return nil
			}
			for _, r := range filtered {
				fmt.Fprintln(out, common.ReceiptLine(r))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.Pending, "pending", false, "only receipts not yet exercised")
	cmd.Flags().BoolVar(&opts.Exercised, "exercised", false, "only exercised receipts")
	cmd.Flags().BoolVar(&opts.Cached, "cached", false, "read the local receipt cache instead of the ledger")

	return cmd
}

func (o *ReceiptsOptions) receipts(ctx context.Context) ([]models.ClaimReceipt, error) {
	services, _, err := o.load(ctx)
	if err != nil {
		return nil, err
	}

	if o.Cached {
		cached, err := services.DbService.GetCachedReceipts(ctx, services.Ledger.ReceiptScope())
		if err != nil {
			return nil, err
		}
		receipts := make([]models.ClaimReceipt, 0, len(cached))
		for _, c := range cached {
			receipts = append(receipts, c.ToReceipt())
		}
		return receipts, nil
	}

	snap, err := o.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for i := range snap.Receipts {
		if services.Orchestrator.Exercised(snap.Receipts[i].ReceiptId) {
			snap.Receipts[i].Exercised = true
		}
	}
	return snap.Receipts, nil
}
