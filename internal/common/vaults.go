package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"insurance-vault-go/internal/models"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

// FallbackDisplay is shown for vaults without a display record
var FallbackDisplay = models.VaultDisplay{
	Manager:   "Vault Manager",
	Strategy:  "Custom strategy",
	RiskLevel: "Moderate",
	TargetApy: "8-14%",
}

type VaultDisplayEntry struct {
	Address             string `yaml:"address"`
	Name                string `yaml:"name"`
	models.VaultDisplay `yaml:",inline"`
}

type VaultDisplayConfig struct {
	Vaults []VaultDisplayEntry `yaml:"vaults"`
}

// VaultDirectory maps vault addresses to their display metadata
type VaultDirectory struct {
	records map[ethcommon.Address]models.VaultDisplay
}

func NewVaultDirectory() *VaultDirectory {
	return &VaultDirectory{records: make(map[ethcommon.Address]models.VaultDisplay)}
}

// LoadVaultDisplay reads the display file. A missing file yields an empty
// directory, so every vault gets the fallback record.
func LoadVaultDisplay(displayFile string) (*VaultDirectory, error) {
	var displayPath string
	if filepath.IsAbs(displayFile) {
		displayPath = displayFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		displayPath = filepath.Join(wd, displayFile)
	}

	data, err := os.ReadFile(displayPath)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("Vault display file not found, using fallback metadata", zap.String("file", displayFile))
		return NewVaultDirectory(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", displayFile, err)
	}

	var config VaultDisplayConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", displayFile, err)
	}

	dir := NewVaultDirectory()
	for i, entry := range config.Vaults {
		if !ethcommon.IsHexAddress(entry.Address) {
			return nil, fmt.Errorf("vault at index %d has invalid address %q", i, entry.Address)
		}
		if entry.Manager == "" {
			return nil, fmt.Errorf("vault at index %d missing manager", i)
		}
		addr := ethcommon.HexToAddress(entry.Address)
		if _, dup := dir.records[addr]; dup {
			return nil, fmt.Errorf("vault %s listed twice", addr.Hex())
		}
		dir.records[addr] = entry.VaultDisplay
	}

	zap.L().Debug("Loaded vault display metadata", zap.Int("vaults", len(dir.records)))
	return dir, nil
}

// Lookup returns the record for exactly addr, or FallbackDisplay
func (d *VaultDirectory) Lookup(addr ethcommon.Address) models.VaultDisplay {
	if d != nil {
		if rec, ok := d.records[addr]; ok {
			return rec
		}
	}
	return FallbackDisplay
}
