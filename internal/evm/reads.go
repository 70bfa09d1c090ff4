package evm

import (
	"context"
	"fmt"
	"math/big"

	"insurance-vault-go/internal/ledger"
	"insurance-vault-go/internal/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type vaultInfoOut struct {
	Name            string
	Manager         common.Address
	Assets          *big.Int
	Shares          *big.Int
	SharePrice      *big.Int
	BufferBps       *big.Int
	FeeBps          *big.Int
	AvailableBuffer *big.Int
	DeployedCapital *big.Int
	PolicyCount     *big.Int
}

type vaultPolicyOut struct {
	AllocationWeight *big.Int
	Premium          *big.Int
	EarnedPremium    *big.Int
	Coverage         *big.Int
	Duration         *big.Int
	StartTime        *big.Int
	TimeRemaining    *big.Int
	Claimed          bool
	Expired          bool
}

type policyTuple struct {
	Id               *big.Int
	Name             string
	VerificationType uint8
	CoverageAmount   *big.Int
	PremiumAmount    *big.Int
	Duration         *big.Int
	StartTime        *big.Int
	Insurer          common.Address
	TriggerThreshold *big.Int
	Status           uint8
}

type receiptTuple struct {
	PolicyId    *big.Int
	ClaimAmount *big.Int
	Vault       common.Address
	Insurer     common.Address
	Timestamp   *big.Int
	Exercised   bool
}

// callRaw executes a read-only call and returns the undecoded return data
func (s *Service) callRaw(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]byte, error) {
	if to == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s", ledger.ErrNotDeployed, method)
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("unable to pack %s: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", method, to.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s on %s: empty response, is the contract deployed?", method, to.Hex())
	}
	return out, nil
}

func (s *Service) call(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	raw, err := s.callRaw(ctx, to, parsed, method, args...)
	if err != nil {
		return nil, err
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unable to unpack %s: %w", method, err)
	}
	return out, nil
}

func (s *Service) callBig(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	out, err := s.call(ctx, to, parsed, method, args...)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

func (s *Service) callUint64(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) (uint64, error) {
	v, err := s.callBig(ctx, to, parsed, method, args...)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s returned %s, out of range", models.ErrInputValidation, method, v)
	}
	return v.Uint64(), nil
}

// --- Vaults ---

func (s *Service) GetVaults(ctx context.Context) ([]common.Address, error) {
	out, err := s.call(ctx, s.contracts.VaultFactory, s.abis.factory, "getVaults")
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

func (s *Service) GetVaultInfo(ctx context.Context, vault common.Address) (*models.VaultInfo, error) {
	raw, err := s.callRaw(ctx, vault, s.abis.vault, "getVaultInfo")
	if err != nil {
		return nil, err
	}
	var out vaultInfoOut
	if err := s.abis.vault.UnpackIntoInterface(&out, "getVaultInfo", raw); err != nil {
		return nil, fmt.Errorf("unable to unpack getVaultInfo: %w", err)
	}
	return &models.VaultInfo{
		Name:            out.Name,
		Manager:         out.Manager,
		TotalAssets:     out.Assets,
		TotalShares:     out.Shares,
		SharePrice:      out.SharePrice,
		BufferBps:       out.BufferBps,
		FeeBps:          out.FeeBps,
		AvailableBuffer: out.AvailableBuffer,
		DeployedCapital: out.DeployedCapital,
		PolicyCount:     out.PolicyCount,
	}, nil
}

func (s *Service) TotalPendingClaims(ctx context.Context, vault common.Address) (*big.Int, error) {
	return s.callBig(ctx, vault, s.abis.vault, "totalPendingClaims")
}

func (s *Service) GetPolicyIds(ctx context.Context, vault common.Address) ([]uint64, error) {
	out, err := s.call(ctx, vault, s.abis.vault, "getPolicyIds")
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	ids := make([]uint64, 0, len(raw))
	for _, id := range raw {
		if !id.IsUint64() {
			return nil, fmt.Errorf("%w: policy id %s out of range", models.ErrInputValidation, id)
		}
		ids = append(ids, id.Uint64())
	}
	return ids, nil
}

func (s *Service) GetVaultPolicy(ctx context.Context, vault common.Address, policyId uint64) (*models.VaultPolicyRaw, error) {
	raw, err := s.callRaw(ctx, vault, s.abis.vault, "getVaultPolicy", new(big.Int).SetUint64(policyId))
	if err != nil {
		return nil, err
	}
	var out vaultPolicyOut
	if err := s.abis.vault.UnpackIntoInterface(&out, "getVaultPolicy", raw); err != nil {
		return nil, fmt.Errorf("unable to unpack getVaultPolicy: %w", err)
	}
	return &models.VaultPolicyRaw{
		PolicyId:         policyId,
		AllocationWeight: out.AllocationWeight,
		Premium:          out.Premium,
		EarnedPremium:    out.EarnedPremium,
		Coverage:         out.Coverage,
		Duration:         out.Duration,
		StartTime:        out.StartTime,
		TimeRemaining:    out.TimeRemaining,
		Claimed:          out.Claimed,
		Expired:          out.Expired,
	}, nil
}

func (s *Service) BalanceOf(ctx context.Context, vault, user common.Address) (*big.Int, error) {
	return s.callBig(ctx, vault, s.abis.vault, "balanceOf", user)
}

func (s *Service) MaxWithdraw(ctx context.Context, vault, user common.Address) (*big.Int, error) {
	return s.callBig(ctx, vault, s.abis.vault, "maxWithdraw", user)
}

// --- Registry ---

func (s *Service) GetPolicy(ctx context.Context, policyId uint64) (*models.Policy, error) {
	out, err := s.call(ctx, s.contracts.PolicyRegistry, s.abis.registry, "getPolicy", new(big.Int).SetUint64(policyId))
	if err != nil {
		return nil, err
	}
	p := *abi.ConvertType(out[0], new(policyTuple)).(*policyTuple)
	if p.Duration == nil || p.Duration.Sign() == 0 {
		// unset storage slot: the registry returns a zero struct for unknown ids
		return nil, fmt.Errorf("policy %d: %w", policyId, ledger.ErrNotFound)
	}
	return &models.Policy{
		Id:               policyId,
		Name:             p.Name,
		VerificationType: models.VerificationType(p.VerificationType),
		CoverageAmount:   p.CoverageAmount,
		PremiumAmount:    p.PremiumAmount,
		Duration:         p.Duration,
		StartTime:        p.StartTime,
		Insurer:          p.Insurer,
		TriggerThreshold: p.TriggerThreshold,
		Status:           models.PolicyStatus(p.Status),
	}, nil
}

func (s *Service) GetPolicyCount(ctx context.Context) (uint64, error) {
	return s.callUint64(ctx, s.contracts.PolicyRegistry, s.abis.registry, "getPolicyCount")
}

func (s *Service) CurrentTime(ctx context.Context) (uint64, error) {
	return s.callUint64(ctx, s.contracts.PolicyRegistry, s.abis.registry, "currentTime")
}

func (s *Service) TimeOffset(ctx context.Context) (uint64, error) {
	return s.callUint64(ctx, s.contracts.PolicyRegistry, s.abis.registry, "timeOffset")
}

// --- Receipts ---

func (s *Service) GetReceipt(ctx context.Context, receiptId uint64) (*models.ClaimReceipt, error) {
	out, err := s.call(ctx, s.contracts.ClaimReceipt, s.abis.receipt, "getReceipt", new(big.Int).SetUint64(receiptId))
	if err != nil {
		return nil, err
	}
	r := *abi.ConvertType(out[0], new(receiptTuple)).(*receiptTuple)
	if r.Vault == (common.Address{}) {
		return nil, fmt.Errorf("receipt %d: %w", receiptId, ledger.ErrNotFound)
	}
	if !r.PolicyId.IsUint64() || !r.Timestamp.IsUint64() {
		return nil, fmt.Errorf("%w: receipt %d has out of range fields", models.ErrInputValidation, receiptId)
	}
	return &models.ClaimReceipt{
		ReceiptId:   receiptId,
		PolicyId:    r.PolicyId.Uint64(),
		ClaimAmount: r.ClaimAmount,
		Vault:       r.Vault,
		Insurer:     r.Insurer,
		Timestamp:   r.Timestamp.Uint64(),
		Exercised:   r.Exercised,
	}, nil
}

func (s *Service) NextReceiptId(ctx context.Context) (uint64, error) {
	return s.callUint64(ctx, s.contracts.ClaimReceipt, s.abis.receipt, "nextReceiptId")
}

// --- Oracle and asset ---

func (s *Service) OracleStatus(ctx context.Context) (*models.OracleStatus, error) {
	price, err := s.call(ctx, s.contracts.MockOracle, s.abis.oracle, "getBtcPrice")
	if err != nil {
		return nil, err
	}
	flight, err := s.call(ctx, s.contracts.MockOracle, s.abis.oracle, "getFlightStatus")
	if err != nil {
		return nil, err
	}

	priceUpdated := *abi.ConvertType(price[1], new(*big.Int)).(**big.Int)
	flightUpdated := *abi.ConvertType(flight[1], new(*big.Int)).(**big.Int)
	return &models.OracleStatus{
		BtcPrice:        *abi.ConvertType(price[0], new(*big.Int)).(**big.Int),
		BtcUpdatedAt:    priceUpdated.Uint64(),
		FlightDelayed:   *abi.ConvertType(flight[0], new(bool)).(*bool),
		FlightUpdatedAt: flightUpdated.Uint64(),
	}, nil
}

func (s *Service) AssetBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	return s.callBig(ctx, s.contracts.MockUSDC, s.abis.usdc, "balanceOf", owner)
}

func (s *Service) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return s.callBig(ctx, s.contracts.MockUSDC, s.abis.usdc, "allowance", owner, spender)
}
