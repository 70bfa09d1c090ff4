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

package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"insurance-vault-go/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

func Load() (*models.Config, error) {
	pollInterval, err := getEnvDuration("POLL_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, err
	}

	rpcTimeout, err := getEnvDuration("RPC_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	chainId, ok := new(big.Int).SetString(getEnvString("CHAIN_ID", "31337"), 10)
	if !ok || chainId.Sign() <= 0 {
		return nil, fmt.Errorf("invalid CHAIN_ID: %q", os.Getenv("CHAIN_ID"))
	}

	contracts := models.ContractAddresses{}
	for key, dst := range map[string]*common.Address{
		"VAULT_FACTORY_ADDRESS":   &contracts.VaultFactory,
		"POLICY_REGISTRY_ADDRESS": &contracts.PolicyRegistry,
		"CLAIM_RECEIPT_ADDRESS":   &contracts.ClaimReceipt,
		"MOCK_ORACLE_ADDRESS":     &contracts.MockOracle,
		"MOCK_USDC_ADDRESS":       &contracts.MockUSDC,
	} {
		if *dst, err = getEnvAddress(key); err != nil {
			return nil, err
		}
	}

	user, err := getEnvAddress("USER_ADDRESS")
	if err != nil {
		return nil, err
	}

	vaults, err := getEnvAddressList("VAULT_ADDRESSES")
	if err != nil {
		return nil, err
	}

	concurrency := getEnvInt("POLL_CONCURRENCY", 8)
	if concurrency <= 0 {
		return nil, fmt.Errorf("POLL_CONCURRENCY must be positive, got %d", concurrency)
	}

	return &models.Config{
		Chain: models.ChainConfig{
			RpcUrl:     getEnvString("RPC_URL", "http://127.0.0.1:8545"),
			ChainId:    chainId,
			PrivateKey: strings.TrimPrefix(os.Getenv("PRIVATE_KEY"), "0x"),
			User:       user,
			Contracts:  contracts,
			RpcTimeout: rpcTimeout,
			Simulate:   getEnvBool("SIMULATE", false),
		},
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "vault_actions.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Poller: models.PollerConfig{
			Interval:    pollInterval,
			Concurrency: concurrency,
			Vaults:      vaults,
		},
		Display: models.DisplayConfig{
			VaultsFile: getEnvString("VAULT_DISPLAY_FILE", "vaults.yaml"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAddress returns the zero address when key is unset
func getEnvAddress(key string) (common.Address, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid address for %s: %q", key, value)
	}
	return common.HexToAddress(value), nil
}

func getEnvAddressList(key string) ([]common.Address, error) {
	value := os.Getenv(key)
	if value == "" {
		return nil, nil
	}
	var out []common.Address
	seen := make(map[common.Address]bool)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !common.IsHexAddress(part) {
			return nil, fmt.Errorf("invalid address in %s: %q", key, part)
		}
		addr := common.HexToAddress(part)
		if !seen[addr] {
			seen[addr] = true
			out = append(out, addr)
		}
	}
	return out, nil
}
