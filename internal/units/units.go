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

// Package units converts between on-chain integer amounts and display values.
// All arithmetic on amounts is integer or decimal based; floats never touch them.
package units

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"insurance-vault-go/internal/models"

	"github.com/shopspring/decimal"
)

// PricePrecision is the number of fractional digits kept for share prices
const PricePrecision int32 = 18

var (
	ErrInvalidAmount = fmt.Errorf("%w: invalid amount", models.ErrInputValidation)
	ErrOutOfRange    = fmt.Errorf("%w: basis points out of range", models.ErrInputValidation)
)

var plainDecimal = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

// ToDecimal scales an integer amount with the given decimals into a decimal value
func ToDecimal(value *big.Int, decimals int32) decimal.Decimal {
	if value == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(value, -decimals)
}

// FormatFixed renders value / 10^decimals with two fractional digits
func FormatFixed(value *big.Int, decimals int32) string {
	return ToDecimal(value, decimals).StringFixed(2)
}

// FormatUSD renders a 6-decimal asset amount as $1,234.56
func FormatUSD(value *big.Int) string {
	s := FormatFixed(value, models.AssetDecimals)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	return sign + "$" + groupThousands(s)
}

// FormatShares renders an 18-decimal share amount with two fractional digits
func FormatShares(value *big.Int) string {
	return groupThousands(FormatFixed(value, models.ShareDecimals))
}

func groupThousands(s string) string {
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	if len(intPart) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return b.String() + frac
}

// ParseFixed parses user-entered text into an integer amount with the given decimals.
// Extra precision is rejected rather than truncated.
func ParseFixed(text string, decimals int32) (*big.Int, error) {
	text = strings.TrimSpace(text)
	if !plainDecimal.MatchString(text) {
		return nil, fmt.Errorf("%w: %q is not a non-negative decimal number", ErrInvalidAmount, text)
	}
	if i := strings.IndexByte(text, '.'); i >= 0 && int32(len(text)-i-1) > decimals {
		return nil, fmt.Errorf("%w: %q has more than %d fractional digits", ErrInvalidAmount, text, decimals)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return d.Shift(decimals).BigInt(), nil
}

// ParseUSDC parses a stable-asset amount (6 decimals)
func ParseUSDC(text string) (*big.Int, error) {
	return ParseFixed(text, models.AssetDecimals)
}

// BpsToPercent renders basis points as a percentage string, e.g. 2000 -> "20.00%".
// Values above 10000 are rejected, never clamped.
func BpsToPercent(bps *big.Int) (string, error) {
	if bps == nil || bps.Sign() < 0 || bps.Cmp(big.NewInt(models.MaxBps)) > 0 {
		return "", fmt.Errorf("%w: %v", ErrOutOfRange, bps)
	}
	return decimal.NewFromBigInt(bps, -2).StringFixed(2) + "%", nil
}

// SharePrice returns assets per share. With no shares issued the deposit-parity
// price of 1 is returned.
func SharePrice(totalAssets, totalShares *big.Int, assetDecimals, shareDecimals int32) decimal.Decimal {
	if totalShares == nil || totalShares.Sign() == 0 {
		return decimal.NewFromInt(1)
	}
	assets := ToDecimal(totalAssets, assetDecimals)
	shares := ToDecimal(totalShares, shareDecimals)
	return assets.DivRound(shares, PricePrecision)
}

// FormatSharePrice renders a share price the way the vault header shows it
func FormatSharePrice(price decimal.Decimal) string {
	return "$" + price.StringFixed(4)
}

// ShortenAddress renders 0x1234...abcd
func ShortenAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// FirstLine returns the first non-empty line of msg
func FirstLine(msg string) string {
	for _, line := range strings.Split(msg, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
