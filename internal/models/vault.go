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

package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	// AssetDecimals is the precision of the stable asset (USDC)
	AssetDecimals int32 = 6
	// ShareDecimals is the precision of vault shares
	ShareDecimals int32 = 18
	// MaxBps is 100% expressed in basis points
	MaxBps = 10000
)

// VaultInfo mirrors getVaultInfo() on the vault contract
type VaultInfo struct {
	Name            string
	Manager         common.Address
	TotalAssets     *big.Int
	TotalShares     *big.Int
	SharePrice      *big.Int // contract-side price, informational only
	BufferBps       *big.Int
	FeeBps          *big.Int
	AvailableBuffer *big.Int
	DeployedCapital *big.Int
	PolicyCount     *big.Int
}

// VaultRaw is the raw vault state the view is derived from
type VaultRaw struct {
	Address common.Address
	VaultInfo
	PendingClaims *big.Int
}

// Breakdown is the capital deployment split used for visualization
type Breakdown struct {
	DeployedPct decimal.Decimal
	BufferPct   decimal.Decimal
	PendingPct  decimal.Decimal
}

// VaultView is the derived state of a vault for one user
type VaultView struct {
	Address            common.Address
	Name               string
	Manager            common.Address
	TotalAssets        *big.Int
	TotalShares        *big.Int
	AvailableBuffer    *big.Int
	DeployedCapital    *big.Int
	PendingClaims      *big.Int
	PolicyCount        uint64
	SharePrice         decimal.Decimal
	BufferRatioDisplay string
	FeeDisplay         string
	UserShares         *big.Int
	UserValue          decimal.Decimal
	MaxWithdraw        *big.Int
	HasPosition        bool
	Breakdown          Breakdown
}

// VaultDisplay is static presentation metadata for a vault
type VaultDisplay struct {
	Manager   string `yaml:"manager"`
	Strategy  string `yaml:"strategy"`
	RiskLevel string `yaml:"risk_level"`
	TargetApy string `yaml:"target_apy"`
}
