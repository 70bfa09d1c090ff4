// Package cli implements the vaultctl commands.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"insurance-vault-go/internal/common"
	"insurance-vault-go/internal/config"
	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/units"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Simulate bool
	Verbose  bool
	Format   string // "json" | "text"
	User     string

	cfg      *models.Config
	services *common.Services
	owned    bool
	syncLog  func()
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for vaultctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// Execute runs vaultctl with the process arguments and releases whatever the
// command opened.
func Execute(ctx context.Context) error {
	opts := &RootOptions{}
	defer opts.Close()
	return newRootCommand(opts).ExecuteContext(ctx)
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vaultctl",
		Short: "Inspect insurance vaults and drive claims",
		Long: `vaultctl reads vault, policy and receipt state from the protocol and
submits claim, deposit and demo-control transactions.

Configuration comes from the environment (or a .env file). With --simulate
every command runs against a fresh in-memory demo protocol.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.User != "" && !ethcommon.IsHexAddress(opts.User) {
				return fmt.Errorf("invalid --user address %q", opts.User)
			}
			if opts.Verbose && opts.syncLog == nil {
				_, opts.syncLog = common.InitializeLogger()
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&opts.Simulate, "simulate", false, "use the in-memory demo protocol")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.User, "user", "", "user address for position reads (overrides USER_ADDRESS)")

	cmd.AddCommand(NewVaultsCommand(opts))
	cmd.AddCommand(NewVaultCommand(opts))
	cmd.AddCommand(NewPoliciesCommand(opts))
	cmd.AddCommand(NewReceiptsCommand(opts))
	cmd.AddCommand(NewTriggerCommand(opts))
	cmd.AddCommand(NewTriggerAllCommand(opts))
	cmd.AddCommand(NewExerciseCommand(opts))
	cmd.AddCommand(NewDepositCommand(opts))
	cmd.AddCommand(NewWithdrawCommand(opts))
	cmd.AddCommand(NewMintCommand(opts))
	cmd.AddCommand(NewAdvanceTimeCommand(opts))
	cmd.AddCommand(NewOracleCommand(opts))
	cmd.AddCommand(NewActionsCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// config loads the environment configuration once, applying flag overrides
func (o *RootOptions) config() (*models.Config, error) {
	if o.cfg != nil {
		return o.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if o.Simulate {
		cfg.Chain.Simulate = true
	}
	if o.User != "" {
		cfg.Chain.User = ethcommon.HexToAddress(o.User)
	}
	o.cfg = cfg
	return cfg, nil
}

// load returns the services, initializing them on first use
func (o *RootOptions) load(ctx context.Context) (*common.Services, *models.Config, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	if o.services == nil {
		services, err := common.InitializeServices(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
		}
		o.services = services
		o.owned = true
	}
	return o.services, cfg, nil
}

// Close releases services opened by load
func (o *RootOptions) Close() {
	if o.owned && o.services != nil {
		o.services.Close()
	}
	if o.syncLog != nil {
		o.syncLog()
	}
}

func (o *RootOptions) user() ethcommon.Address {
	if o.cfg == nil {
		return ethcommon.Address{}
	}
	if o.cfg.Chain.User != (ethcommon.Address{}) {
		return o.cfg.Chain.User
	}
	if o.services != nil {
		return o.services.Ledger.Sender()
	}
	return ethcommon.Address{}
}

func parseAddress(name, value string) (ethcommon.Address, error) {
	if !ethcommon.IsHexAddress(value) {
		return ethcommon.Address{}, fmt.Errorf("%w: invalid %s address %q", models.ErrInputValidation, name, value)
	}
	return ethcommon.HexToAddress(value), nil
}

func parseId(name, value string) (uint64, error) {
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", models.ErrInputValidation, name, value)
	}
	return id, nil
}

// describeError reduces remote failures to their first line
func describeError(err error) string {
	var remote *models.RemoteError
	if errors.As(err, &remote) {
		return remote.FirstLine()
	}
	return units.FirstLine(err.Error())
}
