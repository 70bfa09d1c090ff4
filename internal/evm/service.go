/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package evm implements ledger.Ledger against the deployed protocol contracts
// over JSON-RPC.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"insurance-vault-go/internal/ledger"
	"insurance-vault-go/internal/models"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy ledger.Ledger.
var _ ledger.Ledger = (*Service)(nil)

type Service struct {
	client    *ethclient.Client
	abis      *contractABIs
	contracts models.ContractAddresses
	chainId   *big.Int
	auth      *bind.TransactOpts
	user      common.Address
	timeout   time.Duration
}

func NewService(ctx context.Context, cfg models.ChainConfig) (*Service, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("rpc url cannot be empty")
	}
	if cfg.ChainId == nil || cfg.ChainId.Sign() <= 0 {
		return nil, fmt.Errorf("chain id must be positive, got %v", cfg.ChainId)
	}
	if cfg.RpcTimeout <= 0 {
		return nil, fmt.Errorf("rpc timeout must be positive, got %v", cfg.RpcTimeout)
	}

	abis, err := parseABIs()
	if err != nil {
		return nil, err
	}

	zap.L().Info("Connecting to chain", zap.String("rpc_url", cfg.RpcUrl), zap.String("chain_id", cfg.ChainId.String()))
	client, err := dial(ctx, cfg.RpcUrl, cfg.RpcTimeout)
	if err != nil {
		return nil, err
	}

	chainCtx, cancel := context.WithTimeout(ctx, cfg.RpcTimeout)
	defer cancel()
	remoteChainId, err := client.ChainID(chainCtx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to read chain id: %w", err)
	}
	if remoteChainId.Cmp(cfg.ChainId) != 0 {
		client.Close()
		return nil, fmt.Errorf("chain id mismatch: configured %s, node reports %s", cfg.ChainId, remoteChainId)
	}

	service := &Service{
		client:    client,
		abis:      abis,
		contracts: cfg.Contracts,
		chainId:   new(big.Int).Set(cfg.ChainId),
		user:      cfg.User,
		timeout:   cfg.RpcTimeout,
	}

	if cfg.PrivateKey != "" {
		key, err := crypto.HexToECDSA(cfg.PrivateKey)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		auth, err := bind.NewKeyedTransactorWithChainID(key, cfg.ChainId)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("unable to create transactor: %w", err)
		}
		service.auth = auth
		if service.user == (common.Address{}) {
			service.user = auth.From
		}
		zap.L().Info("Signing enabled", zap.String("sender", auth.From.Hex()))
	} else {
		zap.L().Info("No PRIVATE_KEY configured, ledger is read-only")
	}

	return service, nil
}

func (s *Service) Close() {
	s.client.Close()
}

// ReceiptScope is "<chain id>:<claim receipt contract>"
func (s *Service) ReceiptScope() string {
	return s.chainId.String() + ":" + strings.ToLower(s.contracts.ClaimReceipt.Hex())
}

// Sender is the signing address, or the configured user when read-only
func (s *Service) Sender() common.Address {
	if s.auth != nil {
		return s.auth.From
	}
	return s.user
}
