package evm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const vaultFactoryABI = `[
	{"type":"function","name":"getVaults","inputs":[],"outputs":[{"name":"","type":"address[]"}],"stateMutability":"view"},
	{"type":"function","name":"getVaultCount","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

const insuranceVaultABI = `[
	{"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"maxWithdraw","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"getVaultInfo","inputs":[],"outputs":[
		{"name":"name","type":"string"},
		{"name":"manager","type":"address"},
		{"name":"assets","type":"uint256"},
		{"name":"shares","type":"uint256"},
		{"name":"sharePrice","type":"uint256"},
		{"name":"bufferBps","type":"uint256"},
		{"name":"feeBps","type":"uint256"},
		{"name":"availableBuffer","type":"uint256"},
		{"name":"deployedCapital","type":"uint256"},
		{"name":"policyCount","type":"uint256"}
	],"stateMutability":"view"},
	{"type":"function","name":"getPolicyIds","inputs":[],"outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view"},
	{"type":"function","name":"getVaultPolicy","inputs":[{"name":"policyId","type":"uint256"}],"outputs":[
		{"name":"allocationWeight","type":"uint256"},
		{"name":"premium","type":"uint256"},
		{"name":"earnedPremium","type":"uint256"},
		{"name":"coverage","type":"uint256"},
		{"name":"duration","type":"uint256"},
		{"name":"startTime","type":"uint256"},
		{"name":"timeRemaining","type":"uint256"},
		{"name":"claimed","type":"bool"},
		{"name":"expired","type":"bool"}
	],"stateMutability":"view"},
	{"type":"function","name":"totalPendingClaims","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"deposit","inputs":[{"name":"assets","type":"uint256"},{"name":"receiver","type":"address"}],"outputs":[{"name":"shares","type":"uint256"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"withdraw","inputs":[{"name":"assets","type":"uint256"},{"name":"receiver","type":"address"},{"name":"owner","type":"address"}],"outputs":[{"name":"shares","type":"uint256"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"checkClaim","inputs":[{"name":"policyId","type":"uint256"}],"outputs":[{"name":"receiptId","type":"uint256"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"reportEvent","inputs":[{"name":"policyId","type":"uint256"}],"outputs":[{"name":"receiptId","type":"uint256"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"submitClaim","inputs":[{"name":"policyId","type":"uint256"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"receiptId","type":"uint256"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"exerciseClaim","inputs":[{"name":"receiptId","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"event","name":"ClaimTriggered","inputs":[
		{"name":"policyId","type":"uint256","indexed":true},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"insurer","type":"address","indexed":false},
		{"name":"receiptId","type":"uint256","indexed":false}
	],"anonymous":false},
	{"type":"event","name":"ClaimExercised","inputs":[
		{"name":"receiptId","type":"uint256","indexed":true},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"insurer","type":"address","indexed":false}
	],"anonymous":false},
	{"type":"event","name":"Deposit","inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"owner","type":"address","indexed":true},
		{"name":"assets","type":"uint256","indexed":false},
		{"name":"shares","type":"uint256","indexed":false}
	],"anonymous":false},
	{"type":"event","name":"Withdraw","inputs":[
		{"name":"sender","type":"address","indexed":true},
		{"name":"receiver","type":"address","indexed":true},
		{"name":"owner","type":"address","indexed":true},
		{"name":"assets","type":"uint256","indexed":false},
		{"name":"shares","type":"uint256","indexed":false}
	],"anonymous":false}
]`

const policyRegistryABI = `[
	{"type":"function","name":"getPolicy","inputs":[{"name":"policyId","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[
		{"name":"id","type":"uint256"},
		{"name":"name","type":"string"},
		{"name":"verificationType","type":"uint8"},
		{"name":"coverageAmount","type":"uint256"},
		{"name":"premiumAmount","type":"uint256"},
		{"name":"duration","type":"uint256"},
		{"name":"startTime","type":"uint256"},
		{"name":"insurer","type":"address"},
		{"name":"triggerThreshold","type":"int256"},
		{"name":"status","type":"uint8"}
	]}],"stateMutability":"view"},
	{"type":"function","name":"getPolicyCount","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"currentTime","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"timeOffset","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"advanceTime","inputs":[{"name":"secondsToAdd","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}
]`

const claimReceiptABI = `[
	{"type":"function","name":"getReceipt","inputs":[{"name":"receiptId","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[
		{"name":"policyId","type":"uint256"},
		{"name":"claimAmount","type":"uint256"},
		{"name":"vault","type":"address"},
		{"name":"insurer","type":"address"},
		{"name":"timestamp","type":"uint256"},
		{"name":"exercised","type":"bool"}
	]}],"stateMutability":"view"},
	{"type":"function","name":"nextReceiptId","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

const mockOracleABI = `[
	{"type":"function","name":"getBtcPrice","inputs":[],"outputs":[{"name":"price","type":"int256"},{"name":"updatedAt","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"getFlightStatus","inputs":[],"outputs":[{"name":"delayed","type":"bool"},{"name":"updatedAt","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"setBtcPrice","inputs":[{"name":"price","type":"int256"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"setFlightStatus","inputs":[{"name":"delayed","type":"bool"}],"outputs":[],"stateMutability":"nonpayable"}
]`

const mockUSDCABI = `[
	{"type":"function","name":"balanceOf","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"allowance","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"},
	{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable"},
	{"type":"function","name":"mint","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}
]`

type contractABIs struct {
	factory  abi.ABI
	vault    abi.ABI
	registry abi.ABI
	receipt  abi.ABI
	oracle   abi.ABI
	usdc     abi.ABI
}

func parseABIs() (*contractABIs, error) {
	out := &contractABIs{}
	for name, def := range map[string]struct {
		json string
		dst  *abi.ABI
	}{
		"VaultFactory":   {vaultFactoryABI, &out.factory},
		"InsuranceVault": {insuranceVaultABI, &out.vault},
		"PolicyRegistry": {policyRegistryABI, &out.registry},
		"ClaimReceipt":   {claimReceiptABI, &out.receipt},
		"MockOracle":     {mockOracleABI, &out.oracle},
		"MockUSDC":       {mockUSDCABI, &out.usdc},
	} {
		parsed, err := abi.JSON(strings.NewReader(def.json))
		if err != nil {
			return nil, fmt.Errorf("unable to parse %s ABI: %w", name, err)
		}
		*def.dst = parsed
	}
	return out, nil
}
