package memledger

import (
	"math/big"

	"insurance-vault-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

// Fixed demo addresses
var (
	BalancedCore = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	DefiAlpha    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	DemoInsurer  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	DemoManager  = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	DemoUser     = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

const (
	demoDuration  = 30 * 24 * 3600
	usdc          = 1_000_000
	btcPriceUnit  = 100_000_000
	demoBtcPrice  = 95_000
	demoThreshold = 80_000
)

func usd(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(usdc))
}

// NewDemo builds the two-vault, three-policy protocol used by SIMULATE mode.
// sender starts with 100,000 USDC and is both oracle reporter and depositor.
func NewDemo(sender common.Address, baseTime uint64) *Ledger {
	l := New(sender, baseTime)

	l.AddVault(BalancedCore, "Balanced Core", DemoManager, 2000, 50)
	l.AddVault(DefiAlpha, "DeFi Alpha", DemoManager, 1500, 100)

	start := new(big.Int).SetUint64(baseTime)
	btc := l.RegisterPolicy(models.Policy{
		Name:             "BTC Price Protection",
		VerificationType: models.VerificationOnChain,
		CoverageAmount:   usd(50_000),
		PremiumAmount:    usd(2_500),
		Duration:         big.NewInt(demoDuration),
		StartTime:        start,
		Insurer:          DemoInsurer,
		TriggerThreshold: new(big.Int).Mul(big.NewInt(demoThreshold), big.NewInt(btcPriceUnit)),
		Status:           models.PolicyActive,
	})
	flight := l.RegisterPolicy(models.Policy{
		Name:             "Flight Delay",
		VerificationType: models.VerificationOracleDependent,
		CoverageAmount:   usd(15_000),
		PremiumAmount:    usd(1_000),
		Duration:         big.NewInt(demoDuration),
		StartTime:        start,
		Insurer:          DemoInsurer,
		TriggerThreshold: big.NewInt(0),
		Status:           models.PolicyActive,
	})
	fire := l.RegisterPolicy(models.Policy{
		Name:             "Commercial Fire",
		VerificationType: models.VerificationOffChain,
		CoverageAmount:   usd(40_000),
		PremiumAmount:    usd(2_000),
		Duration:         big.NewInt(demoDuration),
		StartTime:        start,
		Insurer:          DemoInsurer,
		TriggerThreshold: big.NewInt(0),
		Status:           models.PolicyActive,
	})

	// Allocation errors are impossible here: vaults and policies were just created
	_ = l.AllocatePolicy(BalancedCore, btc, big.NewInt(40), usd(1_000), usd(50_000))
	_ = l.AllocatePolicy(BalancedCore, flight, big.NewInt(35), usd(500), usd(15_000))
	_ = l.AllocatePolicy(BalancedCore, fire, big.NewInt(25), usd(800), usd(40_000))
	_ = l.AllocatePolicy(DefiAlpha, btc, big.NewInt(60), usd(1_500), usd(50_000))
	_ = l.AllocatePolicy(DefiAlpha, flight, big.NewInt(40), usd(500), usd(15_000))

	l.mu.Lock()
	l.oracle.BtcPrice = new(big.Int).Mul(big.NewInt(demoBtcPrice), big.NewInt(btcPriceUnit))
	l.oracle.BtcUpdatedAt = baseTime
	l.balances[sender] = usd(100_000)
	l.mu.Unlock()

	l.seedLiquidity(BalancedCore, usd(500_000))
	l.seedLiquidity(DefiAlpha, usd(250_000))
	return l
}

// seedLiquidity deposits on behalf of the manager at parity
func (l *Ledger) seedLiquidity(addr common.Address, assets *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	v := l.vaults[addr]
	shares := new(big.Int).Mul(assets, shareOffset)
	toBuffer := new(big.Int).Mul(assets, big.NewInt(v.bufferBps))
	toBuffer.Div(toBuffer, big.NewInt(models.MaxBps))

	v.availableBuffer.Add(v.availableBuffer, toBuffer)
	v.deployedCapital.Add(v.deployedCapital, new(big.Int).Sub(assets, toBuffer))
	v.totalAssets.Add(v.totalAssets, assets)
	v.totalShares.Add(v.totalShares, shares)
	v.shares[v.manager] = new(big.Int).Add(clone(v.shares[v.manager]), shares)
}
