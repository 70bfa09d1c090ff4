package common

import (
	"fmt"
	"strings"

	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/policy"
	"insurance-vault-go/internal/units"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// VaultHeader renders the summary line block for a vault
func VaultHeader(vs models.VaultSnapshot) []string {
	v := vs.View
	lines := []string{
		fmt.Sprintf("┌─ %s (%s)", v.Name, units.ShortenAddress(v.Address.Hex())),
		fmt.Sprintf("│  Manager: %s | Strategy: %s", vs.Display.Manager, vs.Display.Strategy),
		fmt.Sprintf("│  Risk: %s | Target APY: %s | Fee: %s | Buffer: %s",
			vs.Display.RiskLevel, vs.Display.TargetApy, v.FeeDisplay, v.BufferRatioDisplay),
		fmt.Sprintf("│  TVL: %s | Share price: %s | Policies: %d",
			units.FormatUSD(v.TotalAssets), units.FormatSharePrice(v.SharePrice), v.PolicyCount),
		fmt.Sprintf("│  Deployed: %s%% | Buffer: %s%% | Pending claims: %s%% (%s)",
			v.Breakdown.DeployedPct.StringFixed(2), v.Breakdown.BufferPct.StringFixed(2),
			v.Breakdown.PendingPct.StringFixed(2), units.FormatUSD(v.PendingClaims)),
	}
	if v.HasPosition {
		lines = append(lines, fmt.Sprintf("│  Your position: %s shares, worth $%s (max withdraw %s)",
			units.FormatShares(v.UserShares), v.UserValue.StringFixed(2), units.FormatUSD(v.MaxWithdraw)))
	}
	return lines
}

// PolicyLine renders one vault policy
func PolicyLine(pv models.PolicyView) string {
	name := fmt.Sprintf("#%d", pv.PolicyId)
	verification := "?"
	if pv.Global != nil {
		name = fmt.Sprintf("#%d %s", pv.PolicyId, pv.Global.Name)
		verification = pv.Global.VerificationType.String()
	}

	state := policy.FormatRemaining(pv.TimeRemaining)
	if pv.Claimed {
		state = "Claimed"
	}
	return fmt.Sprintf("%-28s %-16s %6s%%  coverage %-14s earned %5s%%  %s",
		name, verification, pv.AllocationPercent.StringFixed(2), units.FormatUSD(pv.Coverage),
		pv.EarnedPremiumFraction.Mul(decimal.NewFromInt(100)).StringFixed(1), state)
}

// ReceiptLine renders one claim receipt
func ReceiptLine(r models.ClaimReceipt) string {
	status := "PENDING"
	if r.Exercised {
		status = "EXERCISED"
	}
	return fmt.Sprintf("#%-4d policy %-3d %-14s vault %s  insurer %s  %s",
		r.ReceiptId, r.PolicyId, units.FormatUSD(r.ClaimAmount),
		units.ShortenAddress(r.Vault.Hex()), units.ShortenAddress(r.Insurer.Hex()), status)
}

// FailureLine renders an item left out of a snapshot
func FailureLine(f models.ReadFailure) string {
	target := string(f.Kind)
	if f.Vault != (ethcommon.Address{}) {
		target += " " + units.ShortenAddress(f.Vault.Hex())
	}
	if f.PolicyId != nil {
		target += fmt.Sprintf(" #%d", *f.PolicyId)
	}
	return fmt.Sprintf("%s: %s", target, units.FirstLine(f.Err))
}

// PrintSnapshot prints every vault with its policies, then receipts and failures
func PrintSnapshot(snap *models.Snapshot) {
	for _, vs := range snap.Vaults {
		fmt.Println()
		for _, line := range VaultHeader(vs) {
			fmt.Println(line)
		}
		PrintBoxSeparator(78)
		for i, pv := range vs.Policies {
			last := i == len(vs.Policies)-1
			fmt.Println(BoxPrefix(last) + PolicyLine(pv))
			for _, r := range snap.Receipts {
				if r.Vault == vs.View.Address && r.PolicyId == pv.PolicyId {
					fmt.Println(BoxDetailPrefix(last) + ReceiptLine(r))
				}
			}
		}
	}
	if len(snap.Receipts) > 0 {
		PrintHeader("CLAIM RECEIPTS", WideWidth)
		for _, r := range snap.Receipts {
			fmt.Println(ReceiptLine(r))
		}
	}
	if snap.Partial() {
		PrintHeader(fmt.Sprintf("PARTIAL SNAPSHOT: %d items unavailable", len(snap.Failures)), WideWidth)
		for _, f := range snap.Failures {
			fmt.Println("  ✗ " + FailureLine(f))
		}
	}
	PrintFooter(fmt.Sprintf("Snapshot #%d: %d vaults, %d receipts", snap.Seq, len(snap.Vaults), len(snap.Receipts)), WideWidth)
}
