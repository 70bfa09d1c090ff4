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

package vault

import (
	"fmt"
	"math/big"

	"insurance-vault-go/internal/models"
	"insurance-vault-go/internal/units"

	"github.com/shopspring/decimal"
)

// percentPrecision is the number of fractional digits kept for breakdown percentages
const percentPrecision int32 = 4

var ErrMalformedVaultData = fmt.Errorf("%w: malformed vault data", models.ErrInputValidation)

var hundred = decimal.NewFromInt(100)

// Derive computes the view of a vault for a user holding userShares.
// userShares may be nil when no user is connected.
func Derive(raw models.VaultRaw, userShares *big.Int) (models.VaultView, error) {
	if err := validate(raw, userShares); err != nil {
		return models.VaultView{}, err
	}

	bufferDisplay, err := units.BpsToPercent(raw.BufferBps)
	if err != nil {
		return models.VaultView{}, fmt.Errorf("%w: buffer ratio: %v", ErrMalformedVaultData, err)
	}
	feeDisplay, err := units.BpsToPercent(raw.FeeBps)
	if err != nil {
		return models.VaultView{}, fmt.Errorf("%w: management fee: %v", ErrMalformedVaultData, err)
	}

	pending := raw.PendingClaims
	if pending == nil {
		pending = new(big.Int)
	}

	price := units.SharePrice(raw.TotalAssets, raw.TotalShares, models.AssetDecimals, models.ShareDecimals)
	hasPosition := userShares != nil && userShares.Sign() > 0

	userValue := decimal.Zero
	if hasPosition {
		userValue = units.ToDecimal(userShares, models.ShareDecimals).Mul(price)
	}

	var policyCount uint64
	if raw.PolicyCount != nil {
		policyCount = raw.PolicyCount.Uint64()
	}

	return models.VaultView{
		Address:            raw.Address,
		Name:               raw.Name,
		Manager:            raw.Manager,
		TotalAssets:        raw.TotalAssets,
		TotalShares:        raw.TotalShares,
		AvailableBuffer:    raw.AvailableBuffer,
		DeployedCapital:    raw.DeployedCapital,
		PendingClaims:      pending,
		PolicyCount:        policyCount,
		SharePrice:         price,
		BufferRatioDisplay: bufferDisplay,
		FeeDisplay:         feeDisplay,
		UserShares:         userShares,
		UserValue:          userValue,
		HasPosition:        hasPosition,
		Breakdown:          ComputeBreakdown(raw.DeployedCapital, raw.AvailableBuffer, pending),
	}, nil
}

// ComputeBreakdown splits deployed + buffer + pending into percentages.
// All parts are 0 when the total is 0.
func ComputeBreakdown(deployed, buffer, pending *big.Int) models.Breakdown {
	d := units.ToDecimal(deployed, 0)
	b := units.ToDecimal(buffer, 0)
	p := units.ToDecimal(pending, 0)

	total := d.Add(b).Add(p)
	if total.IsZero() {
		return models.Breakdown{DeployedPct: decimal.Zero, BufferPct: decimal.Zero, PendingPct: decimal.Zero}
	}
	pct := func(part decimal.Decimal) decimal.Decimal {
		return part.Mul(hundred).DivRound(total, percentPrecision)
	}
	return models.Breakdown{
		DeployedPct: pct(d),
		BufferPct:   pct(b),
		PendingPct:  pct(p),
	}
}

func validate(raw models.VaultRaw, userShares *big.Int) error {
	required := []struct {
		name  string
		value *big.Int
	}{
		{"total assets", raw.TotalAssets},
		{"total shares", raw.TotalShares},
		{"buffer bps", raw.BufferBps},
		{"fee bps", raw.FeeBps},
		{"available buffer", raw.AvailableBuffer},
		{"deployed capital", raw.DeployedCapital},
	}
	for _, f := range required {
		if f.value == nil {
			return fmt.Errorf("%w: %s missing", ErrMalformedVaultData, f.name)
		}
		if f.value.Sign() < 0 {
			return fmt.Errorf("%w: %s is negative (%s)", ErrMalformedVaultData, f.name, f.value)
		}
	}
	if raw.PendingClaims != nil && raw.PendingClaims.Sign() < 0 {
		return fmt.Errorf("%w: pending claims is negative (%s)", ErrMalformedVaultData, raw.PendingClaims)
	}
	if raw.PolicyCount != nil && raw.PolicyCount.Sign() < 0 {
		return fmt.Errorf("%w: policy count is negative (%s)", ErrMalformedVaultData, raw.PolicyCount)
	}
	if userShares != nil && userShares.Sign() < 0 {
		return fmt.Errorf("%w: user shares is negative (%s)", ErrMalformedVaultData, userShares)
	}
	return nil
}
