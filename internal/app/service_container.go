package app

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/clients"
	"bridge-backend/internal/config"
	"bridge-backend/internal/db"
	"bridge-backend/internal/events"
	"bridge-backend/internal/ledger"
	"bridge-backend/internal/metrics"
	"bridge-backend/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ServiceContainer wires the bridge endpoint and its supporting services.
type ServiceContainer struct {
	DB *gorm.DB

	// Core
	Endpoint *bridge.Endpoint
	// SignaturePolicy is non-nil only in signature access mode.
	SignaturePolicy *bridge.SignaturePolicy
	// AdminPrincipal is the principal admin HTTP operations act as.
	AdminPrincipal string

	// Stores (database or memory, depending on configuration)
	TransferRepo *repository.TransferRepository
	Ledger       ledger.AccountLedger

	// Event sinks
	NATSClient   *clients.NATSClient
	WebSocketHub *events.WebSocketHub
	publisher    *events.MultiPublisher

	Logger *logrus.Logger

	natsOnce sync.Once
}

var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer builds the container from the loaded configuration.
func InitializeContainer(logger *logrus.Logger) (*ServiceContainer, error) {
	var initErr error

	containerOnce.Do(func() {
		log.Println("🚀 Initializing Service Container...")

		container := &ServiceContainer{
			DB:           db.DB,
			Logger:       logger,
			WebSocketHub: events.NewWebSocketHub(),
		}

		if err := container.initEndpoint(); err != nil {
			initErr = fmt.Errorf("failed to initialize bridge endpoint: %w", err)
			return
		}

		if err := container.initEventServices(); err != nil {
			// NATS is optional; the WebSocket hub still delivers events.
			log.Printf("⚠️ Event services initialization skipped or failed: %v", err)
		}

		Container = container
		log.Println("✅ Service Container initialized successfully")
	})

	return Container, initErr
}

// initEndpoint assembles stores, access policy, ledgers and the endpoint.
func (c *ServiceContainer) initEndpoint() error {
	cfg := config.AppConfig
	endpointCfg := bridge.Config{
		LocalAsset:          cfg.Endpoint.LocalAsset,
		CounterpartAssetRef: cfg.Endpoint.CounterpartAssetRef,
		LocalChainID:        cfg.Endpoint.LocalChainID,
		CounterpartChainID:  cfg.Endpoint.CounterpartChainID,
		IsSource:            cfg.Endpoint.IsSource,
		EndpointAccount:     strings.ToLower(cfg.Endpoint.EndpointAccount),
	}

	var (
		state  bridge.StateStore
		replay bridge.ReplayGuard
		nonces bridge.NonceLedger
		roles  bridge.RoleManager
	)

	if c.DB != nil {
		log.Println("📦 Using Postgres-backed bridge stores")
		stateRepo, err := repository.NewStateRepository(c.DB)
		if err != nil {
			return fmt.Errorf("init state store: %w", err)
		}
		state = stateRepo
		replay = repository.NewReplayGuardRepository(c.DB)
		nonces = repository.NewNonceRepository(c.DB)
		roles = repository.NewRoleRepository(c.DB)
		c.TransferRepo = repository.NewTransferRepository(c.DB)
		c.Ledger = repository.NewLedgerRepository(c.DB)
	} else {
		log.Println("📦 Using in-memory bridge stores (no durability)")
		state = bridge.NewMemoryState()
		replay = bridge.NewMemoryReplayGuard()
		nonces = bridge.NewMemoryNonceLedger()
		roles = bridge.NewMemoryRoleStore()
		c.Ledger = ledger.NewMemoryLedger()
	}

	// Access policy
	var access bridge.AccessPolicy
	var roleManager bridge.RoleManager
	switch cfg.Access.Mode {
	case "signature":
		c.SignaturePolicy = bridge.NewSignaturePolicy(
			common.HexToAddress(cfg.Access.Validator),
			cfg.Access.Admin,
		)
		access = c.SignaturePolicy
		c.AdminPrincipal = strings.ToLower(cfg.Access.Admin)
	default:
		policy, err := bridge.NewRolePolicy(context.Background(), roles, strings.ToLower(cfg.Access.Deployer))
		if err != nil {
			return fmt.Errorf("init role policy: %w", err)
		}
		access = policy
		roleManager = policy.Store()
		c.AdminPrincipal = strings.ToLower(cfg.Access.Deployer)
	}

	c.publisher = events.NewMultiPublisher(c.WebSocketHub)
	opts := []bridge.EndpointOption{
		bridge.WithLogger(c.Logger),
		bridge.WithPublisher(c.publisher),
	}
	if roleManager != nil {
		opts = append(opts, bridge.WithRoleManager(roleManager))
	}
	if c.TransferRepo != nil {
		opts = append(opts, bridge.WithRecorder(c.TransferRepo))
	}

	// Side-specific ledgers. The on-chain ERC-20 adapter replaces the
	// account-ledger custody AND the emergency vault when EVM mode is
	// enabled, so the escape hatch sweeps the actual custodied token.
	if endpointCfg.IsSource {
		var custody bridge.CustodyLedger
		var vault bridge.EmergencyVault
		if cfg.EVM.Enabled {
			erc20, err := clients.NewERC20Client(
				cfg.EVM.RPCEndpoints,
				cfg.EVM.TokenContract,
				cfg.EVM.ChainID,
				cfg.EVM.PrivateKey,
				cfg.EVM.GasLimit,
			)
			if err != nil {
				return fmt.Errorf("init ERC-20 custody: %w", err)
			}
			custody = erc20
			vault = erc20
		} else {
			custody = &ledger.Custody{
				Ledger:          c.Ledger,
				Asset:           endpointCfg.LocalAsset,
				EndpointAccount: endpointCfg.EndpointAccount,
			}
			vault = &ledger.Vault{
				Ledger:          c.Ledger,
				EndpointAccount: endpointCfg.EndpointAccount,
			}
		}
		opts = append(opts, bridge.WithCustodyLedger(custody))
		opts = append(opts, bridge.WithEmergencyVault(vault))
	} else {
		opts = append(opts, bridge.WithIssuanceLedger(&ledger.Issuance{
			Ledger: c.Ledger,
			Asset:  endpointCfg.LocalAsset,
		}))
		opts = append(opts, bridge.WithEmergencyVault(&ledger.Vault{
			Ledger:          c.Ledger,
			EndpointAccount: endpointCfg.EndpointAccount,
		}))
	}

	c.Endpoint = bridge.NewEndpoint(endpointCfg, state, replay, nonces, access, opts...)

	// Seed the gauges so dashboards start from real state.
	if endpointCfg.IsSource {
		if locked, err := c.Endpoint.LockedBalance(context.Background()); err == nil {
			f, _ := new(big.Float).SetInt(locked).Float64()
			metrics.LockedBalance.Set(f)
		}
	}
	if paused, err := c.Endpoint.Paused(context.Background()); err == nil && paused {
		metrics.PausedStatus.Set(1)
	}

	log.Println("✅ Bridge endpoint initialized")
	return nil
}

// initEventServices attaches the NATS JetStream sink when configured.
func (c *ServiceContainer) initEventServices() error {
	if config.AppConfig == nil || config.AppConfig.NATS.URL == "" {
		return fmt.Errorf("NATS not configured")
	}
	return c.InitNATSClient()
}

// InitNATSClient connects the NATS sink and adds it to the endpoint's
// publisher fanout.
func (c *ServiceContainer) InitNATSClient() error {
	var initErr error

	c.natsOnce.Do(func() {
		log.Println("🔌 Connecting to NATS...")

		cfg := config.AppConfig.NATS
		streamName := cfg.StreamName
		if streamName == "" {
			streamName = "bridge-events"
		}
		subjectPrefix := cfg.SubjectPrefix
		if subjectPrefix == "" {
			subjectPrefix = fmt.Sprintf("bridge.%s.endpoint", config.AppConfig.Endpoint.ChainName)
		}

		natsClient, err := clients.NewNATSClient(cfg.URL, streamName, subjectPrefix)
		if err != nil {
			log.Printf("❌ Failed to connect to NATS at %s: %v", cfg.URL, err)
			initErr = fmt.Errorf("failed to create NATS client: %w", err)
			return
		}

		c.NATSClient = natsClient
		c.publisher.Add(natsClient)
		log.Printf("✅ NATS client connected: %s", cfg.URL)
	})

	return initErr
}

// Cleanup releases external connections.
func (c *ServiceContainer) Cleanup() {
	log.Println("🧹 Cleaning up Service Container...")
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
	log.Println("✅ Service Container cleaned up")
}
