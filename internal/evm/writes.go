package evm

import (
	"context"
	"fmt"
	"math/big"

	"insurance-vault-go/internal/ledger"
	"insurance-vault-go/internal/models"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

type claimTriggeredLog struct {
	PolicyId  *big.Int
	Amount    *big.Int
	Insurer   common.Address
	ReceiptId *big.Int
}

type claimExercisedLog struct {
	ReceiptId *big.Int
	Amount    *big.Int
	Insurer   common.Address
}

// sharesLog decodes both ERC-4626 Deposit and Withdraw
type sharesLog struct {
	Sender   common.Address
	Receiver common.Address
	Owner    common.Address
	Assets   *big.Int
	Shares   *big.Int
}

// transact sends method to the contract at to and blocks until it is mined
func (s *Service) transact(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) (*types.Receipt, *bind.BoundContract, error) {
	if s.auth == nil {
		return nil, nil, fmt.Errorf("%w: %s", ledger.ErrReadOnly, method)
	}
	if to == (common.Address{}) {
		return nil, nil, fmt.Errorf("%w: %s", ledger.ErrNotDeployed, method)
	}

	opts := *s.auth
	opts.Context = ctx
	contract := bind.NewBoundContract(to, parsed, s.client, s.client, s.client)

	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		return nil, nil, err
	}
	zap.L().Info("Transaction submitted",
		zap.String("method", method),
		zap.String("to", to.Hex()),
		zap.String("tx_hash", tx.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, s.client, tx)
	if err != nil {
		return nil, nil, fmt.Errorf("waiting for %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, nil, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
	}

	zap.L().Info("Transaction confirmed",
		zap.String("method", method),
		zap.String("tx_hash", tx.Hash().Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()),
		zap.Uint64("gas_used", receipt.GasUsed))
	return receipt, contract, nil
}

func (s *Service) simple(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...interface{}) (*models.TxResult, error) {
	receipt, _, err := s.transact(ctx, to, parsed, method, args...)
	if err != nil {
		return nil, err
	}
	return &models.TxResult{TxHash: receipt.TxHash.Hex()}, nil
}

// claimResult decodes claim events emitted by the vault into the result
func (s *Service) claimResult(receipt *types.Receipt, contract *bind.BoundContract, vault common.Address) (*models.TxResult, error) {
	result := &models.TxResult{TxHash: receipt.TxHash.Hex()}
	triggeredId := s.abis.vault.Events["ClaimTriggered"].ID
	exercisedId := s.abis.vault.Events["ClaimExercised"].ID

	for _, log := range receipt.Logs {
		if log.Address != vault || len(log.Topics) == 0 {
			continue
		}
		switch log.Topics[0] {
		case triggeredId:
			var ev claimTriggeredLog
			if err := contract.UnpackLog(&ev, "ClaimTriggered", *log); err != nil {
				return nil, fmt.Errorf("unable to decode ClaimTriggered: %w", err)
			}
			id := ev.ReceiptId.Uint64()
			result.ReceiptId = &id
			result.Events = append(result.Events, models.ClaimEvent{
				Name:      models.EventClaimTriggered,
				PolicyId:  ev.PolicyId.Uint64(),
				ReceiptId: id,
				Amount:    ev.Amount,
				Insurer:   ev.Insurer,
			})
		case exercisedId:
			var ev claimExercisedLog
			if err := contract.UnpackLog(&ev, "ClaimExercised", *log); err != nil {
				return nil, fmt.Errorf("unable to decode ClaimExercised: %w", err)
			}
			result.Events = append(result.Events, models.ClaimEvent{
				Name:      models.EventClaimExercised,
				ReceiptId: ev.ReceiptId.Uint64(),
				Amount:    ev.Amount,
				Insurer:   ev.Insurer,
			})
		}
	}
	return result, nil
}

func (s *Service) claim(ctx context.Context, vault common.Address, method string, args ...interface{}) (*models.TxResult, error) {
	receipt, contract, err := s.transact(ctx, vault, s.abis.vault, method, args...)
	if err != nil {
		return nil, err
	}
	return s.claimResult(receipt, contract, vault)
}

// sharesResult reads the minted or burned shares from an ERC-4626 event
func (s *Service) sharesResult(receipt *types.Receipt, contract *bind.BoundContract, vault common.Address, event string) *models.TxResult {
	result := &models.TxResult{TxHash: receipt.TxHash.Hex()}
	eventId := s.abis.vault.Events[event].ID
	for _, log := range receipt.Logs {
		if log.Address != vault || len(log.Topics) == 0 || log.Topics[0] != eventId {
			continue
		}
		var ev sharesLog
		if err := contract.UnpackLog(&ev, event, *log); err != nil {
			zap.L().Warn("Unable to decode vault event", zap.String("event", event), zap.Error(err))
			continue
		}
		result.Shares = ev.Shares
	}
	return result
}

// --- Vault ---

func (s *Service) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*models.TxResult, error) {
	return s.simple(ctx, s.contracts.MockUSDC, s.abis.usdc, "approve", spender, amount)
}

func (s *Service) Deposit(ctx context.Context, vault common.Address, assets *big.Int, receiver common.Address) (*models.TxResult, error) {
	receipt, contract, err := s.transact(ctx, vault, s.abis.vault, "deposit", assets, receiver)
	if err != nil {
		return nil, err
	}
	return s.sharesResult(receipt, contract, vault, "Deposit"), nil
}

func (s *Service) Withdraw(ctx context.Context, vault common.Address, assets *big.Int, receiver, owner common.Address) (*models.TxResult, error) {
	receipt, contract, err := s.transact(ctx, vault, s.abis.vault, "withdraw", assets, receiver, owner)
	if err != nil {
		return nil, err
	}
	return s.sharesResult(receipt, contract, vault, "Withdraw"), nil
}

// --- Claims ---

func (s *Service) CheckClaim(ctx context.Context, vault common.Address, policyId uint64) (*models.TxResult, error) {
	return s.claim(ctx, vault, "checkClaim", new(big.Int).SetUint64(policyId))
}

func (s *Service) ReportEvent(ctx context.Context, vault common.Address, policyId uint64) (*models.TxResult, error) {
	return s.claim(ctx, vault, "reportEvent", new(big.Int).SetUint64(policyId))
}

func (s *Service) SubmitClaim(ctx context.Context, vault common.Address, policyId uint64, amount *big.Int) (*models.TxResult, error) {
	return s.claim(ctx, vault, "submitClaim", new(big.Int).SetUint64(policyId), amount)
}

func (s *Service) ExerciseClaim(ctx context.Context, vault common.Address, receiptId uint64) (*models.TxResult, error) {
	return s.claim(ctx, vault, "exerciseClaim", new(big.Int).SetUint64(receiptId))
}

// --- Demo controls ---

func (s *Service) AdvanceTime(ctx context.Context, seconds uint64) (*models.TxResult, error) {
	return s.simple(ctx, s.contracts.PolicyRegistry, s.abis.registry, "advanceTime", new(big.Int).SetUint64(seconds))
}

func (s *Service) SetBtcPrice(ctx context.Context, price *big.Int) (*models.TxResult, error) {
	return s.simple(ctx, s.contracts.MockOracle, s.abis.oracle, "setBtcPrice", price)
}

func (s *Service) SetFlightStatus(ctx context.Context, delayed bool) (*models.TxResult, error) {
	return s.simple(ctx, s.contracts.MockOracle, s.abis.oracle, "setFlightStatus", delayed)
}

func (s *Service) Mint(ctx context.Context, to common.Address, amount *big.Int) (*models.TxResult, error) {
	return s.simple(ctx, s.contracts.MockUSDC, s.abis.usdc, "mint", to, amount)
}
