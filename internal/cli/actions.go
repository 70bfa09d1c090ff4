package cli

import (
	"fmt"

	"insurance-vault-go/internal/common"
	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/store"
	"insurance-vault-go/internal/units"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ActionsOptions holds flags for the actions command.
type ActionsOptions struct {
	*RootOptions
	Vault  string
	Action string
	Limit  int
	Offset int
}

// NewActionsCommand creates the actions command.
func NewActionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ActionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "Show the journal of submitted claim-path actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			filter := store.HistoryFilter{
				Action: models.ActionType(opts.Action),
				Limit:  opts.Limit,
				Offset: opts.Offset,
			}
			if opts.Vault != "" {
				vault, err := parseAddress("vault", opts.Vault)
				if err != nil {
					return err
				}
				filter.Vault = &vault
			}

			var journal store.ActionJournal
			if opts.services != nil {
				journal = opts.services.DbService
			} else {
				cfg, err := opts.config()
				if err != nil {
					return err
				}
				db, err := common.InitializeDatabaseOnly(ctx, cfg)
				if err != nil {
					return err
				}
				defer db.Close()
				journal = db
			}

			records, err := journal.GetActionHistory(ctx, filter)
			if err != nil {
				return err
			}
			zap.L().Debug("Loaded action history", zap.Int("records", len(records)))

			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No actions recorded")
				return nil
			}
			for _, r := range records {
				line := fmt.Sprintf("%s  %-14s %-10s %s #%d",
					r.CreatedAt.Format("2006-01-02 15:04:05"), r.Action, r.Status,
					units.ShortenAddress(r.Vault), r.TargetId)
				if r.ReceiptId != nil {
					line += fmt.Sprintf(" receipt #%d", *r.ReceiptId)
				}
				if r.Reason != "" {
					line += "  " + r.Reason
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Vault, "vault", "", "only actions on this vault")
	cmd.Flags().StringVar(&opts.Action, "action", "", "only this action type (check_claim, report_event, submit_claim, exercise_claim, deposit, withdraw)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum records")
	cmd.Flags().IntVar(&opts.Offset, "offset", 0, "records to skip")

	return cmd
}
