package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config represents the application configuration
type Config struct {
	Chain    ChainConfig
	Database DatabaseConfig
	Poller   PollerConfig
	Display  DisplayConfig
}

// ChainConfig holds RPC and contract address settings
type ChainConfig struct {
	RpcUrl     string
	ChainId    *big.Int
	PrivateKey string
	User       common.Address
	Contracts  ContractAddresses
	RpcTimeout time.Duration
	Simulate   bool
}

// ContractAddresses are the protocol-wide singleton contracts
type ContractAddresses struct {
	VaultFactory   common.Address
	PolicyRegistry common.Address
	ClaimReceipt   common.Address
	MockOracle     common.Address
	MockUSDC       common.Address
}

// DatabaseConfig holds action journal connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// PollerConfig holds snapshot polling settings
type PollerConfig struct {
	Interval    time.Duration
	Concurrency int
	Vaults      []common.Address
}

// DisplayConfig points at the vault display metadata file
type DisplayConfig struct {
	VaultsFile string
}
