package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration loaded from config.yaml with
// environment overrides.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     NATSConfig     `yaml:"nats"`
	Endpoint EndpointConfig `yaml:"endpoint"`
	Access   AccessConfig   `yaml:"access"`
	EVM      EVMConfig      `yaml:"evm"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration. An empty DSN runs the endpoint on
// in-memory stores (single-node mode, no durability).
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig message server configuration. An empty URL disables event
// publishing to the relayer bus.
type NATSConfig struct {
	URL           string `yaml:"url"`
	Timeout       int    `yaml:"timeout"`
	ReconnectWait int    `yaml:"reconnect_wait"`
	MaxReconnects int    `yaml:"max_reconnects"`
	StreamName    string `yaml:"stream_name"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// EndpointConfig is the immutable bridge endpoint parameterization.
type EndpointConfig struct {
	LocalAsset          string `yaml:"localAsset"`
	CounterpartAssetRef string `yaml:"counterpartAssetRef"`
	LocalChainID        uint64 `yaml:"localChainId"`
	CounterpartChainID  uint64 `yaml:"counterpartChainId"`
	IsSource            bool   `yaml:"isSource"`
	// EndpointAccount holds custodied funds on the account ledger.
	EndpointAccount string `yaml:"endpointAccount"`
	// ChainName tags NATS subjects and log lines (e.g. "bsc", "native").
	ChainName string `yaml:"chainName"`
}

// AccessConfig selects and parameterizes the access control policy.
type AccessConfig struct {
	// Mode is "roles" or "signature".
	Mode string `yaml:"mode"`
	// Deployer is seeded as admin+relayer at genesis (roles mode).
	Deployer string `yaml:"deployer"`
	// Validator is the signer address whose proofs release funds
	// (signature mode).
	Validator string `yaml:"validator"`
	// Admin may rotate the validator key (signature mode).
	Admin string `yaml:"admin"`
}

// EVMConfig configures the optional on-chain ERC-20 custody adapter. When
// disabled the endpoint uses the database-backed account ledger.
type EVMConfig struct {
	Enabled      bool     `yaml:"enabled"`
	RPCEndpoints []string `yaml:"rpcEndpoints"`
	ChainID      int64    `yaml:"chainId"`
	// TokenContract is the ERC-20 contract of the local asset.
	TokenContract string `yaml:"tokenContract"`
	// PrivateKey signs outgoing transfers (hex, no 0x prefix). Overridable
	// via EVM_PRIVATE_KEY.
	PrivateKey string `yaml:"privateKey"`
	GasLimit   uint64 `yaml:"gasLimit"`
}

var AppConfig *Config

// LoadConfig loads the configuration file and applies environment overrides.
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&config)

	if err := validate(&config); err != nil {
		return err
	}

	side := "destination (issuance)"
	if config.Endpoint.IsSource {
		side = "source (custody)"
	}
	log.Printf("📋 [Config] Bridge endpoint: side=%s, localAsset=%s, localChainId=%d, counterpartChainId=%d",
		side, config.Endpoint.LocalAsset, config.Endpoint.LocalChainID, config.Endpoint.CounterpartChainID)
	log.Printf("📋 [Config] Access control mode: %s", config.Access.Mode)

	AppConfig = &config
	return nil
}

func validate(config *Config) error {
	if config.Endpoint.LocalAsset == "" {
		return fmt.Errorf("endpoint.localAsset is required")
	}
	if config.Endpoint.LocalChainID == config.Endpoint.CounterpartChainID {
		return fmt.Errorf("endpoint local and counterpart chain ids must differ")
	}
	switch config.Access.Mode {
	case "", "roles":
		config.Access.Mode = "roles"
		if config.Access.Deployer == "" {
			return fmt.Errorf("access.deployer is required in roles mode")
		}
	case "signature":
		if config.Access.Validator == "" || config.Access.Admin == "" {
			return fmt.Errorf("access.validator and access.admin are required in signature mode")
		}
	default:
		return fmt.Errorf("unknown access mode %q (want roles or signature)", config.Access.Mode)
	}
	return nil
}

func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	if isSource := os.Getenv("BRIDGE_IS_SOURCE"); isSource != "" {
		config.Endpoint.IsSource = isSource == "true"
	}
	if asset := os.Getenv("BRIDGE_LOCAL_ASSET"); asset != "" {
		config.Endpoint.LocalAsset = asset
	}
	if account := os.Getenv("BRIDGE_ENDPOINT_ACCOUNT"); account != "" {
		config.Endpoint.EndpointAccount = account
	}

	if mode := os.Getenv("ACCESS_MODE"); mode != "" {
		config.Access.Mode = strings.ToLower(mode)
	}
	if deployer := os.Getenv("ACCESS_DEPLOYER"); deployer != "" {
		config.Access.Deployer = deployer
	}
	if validator := os.Getenv("ACCESS_VALIDATOR"); validator != "" {
		config.Access.Validator = validator
	}
	if admin := os.Getenv("ACCESS_ADMIN"); admin != "" {
		config.Access.Admin = admin
	}

	if key := os.Getenv("EVM_PRIVATE_KEY"); key != "" {
		config.EVM.PrivateKey = key
	}
}
