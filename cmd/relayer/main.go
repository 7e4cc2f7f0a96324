package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bridge-backend/internal/bridge"
	"bridge-backend/internal/clients"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// A minimal reference relayer: watches one endpoint's Locked/Burned events on
// JetStream and submits the matching release (mint/unlock) to the counterpart
// endpoint's HTTP API. With -validator-key set it attaches a signature proof
// for endpoints running the signature access policy; otherwise the bearer
// token's address must hold the relayer role.
func main() {
	natsURL := flag.String("nats", "nats://localhost:4222", "NATS server URL")
	stream := flag.String("stream", "bridge-events", "JetStream stream name")
	subjectPrefix := flag.String("subject-prefix", "", "origin endpoint subject prefix, e.g. bridge.bsc.endpoint")
	durable := flag.String("durable", "bridge-relayer", "durable consumer name")
	apiBase := flag.String("api", "http://localhost:8080", "counterpart endpoint API base URL")
	validatorKey := flag.String("validator-key", "", "hex validator private key for signature proofs (optional)")
	flag.Parse()

	if *subjectPrefix == "" {
		log.Fatalf("-subject-prefix is required")
	}
	token := os.Getenv("RELAYER_API_TOKEN")
	if token == "" {
		log.Fatalf("RELAYER_API_TOKEN is required (wallet session token for the counterpart API)")
	}

	var signerKey = *validatorKey
	if signerKey == "" {
		signerKey = os.Getenv("RELAYER_VALIDATOR_KEY")
	}

	nc, err := clients.NewNATSClient(*natsURL, *stream, *subjectPrefix)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}
	defer nc.Close()

	relay := &relayer{
		apiBase:   strings.TrimRight(*apiBase, "/"),
		token:     token,
		signerKey: signerKey,
		client:    &http.Client{Timeout: 30 * time.Second},
	}

	err = nc.SubscribeToEvents(*durable, func(eventType, user, amount string, nonce, chainID uint64, transferID string) {
		switch bridge.EventType(eventType) {
		case bridge.EventLocked:
			relay.release("mint", user, amount, nonce, transferID)
		case bridge.EventBurned:
			relay.release("unlock", user, amount, nonce, transferID)
		default:
			// Unlocked/Minted are terminal; nothing to relay.
		}
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	log.Printf("✅ Relaying %s.* → %s", *subjectPrefix, relay.apiBase)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Relayer stopped")
}

type relayer struct {
	apiBase   string
	token     string
	signerKey string
	client    *http.Client
}

func (r *relayer) release(operation, recipient, amount string, nonce uint64, transferID string) {
	body := map[string]interface{}{
		"recipient":   recipient,
		"amount":      amount,
		"nonce":       nonce,
		"transfer_id": transferID,
	}
	if r.signerKey != "" {
		proof, err := r.signProof(recipient, amount, transferID)
		if err != nil {
			log.Printf("❌ Failed to sign proof for %s: %v", transferID, err)
			return
		}
		body["proof"] = proof
	}

	payload, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/api/bridge/%s", r.apiBase, operation), bytes.NewReader(payload))
	if err != nil {
		log.Printf("❌ Failed to build %s request: %v", operation, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.client.Do(req)
	if err != nil {
		log.Printf("❌ %s submission failed for %s: %v", operation, transferID, err)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		log.Printf("✅ Relayed %s for %s (amount %s)", operation, transferID, amount)
	case http.StatusConflict:
		// Already processed: another relayer won, nothing to do.
		log.Printf("ℹ️ Transfer %s already processed", transferID)
	default:
		log.Printf("⚠️ %s rejected for %s: HTTP %d", operation, transferID, resp.StatusCode)
	}
}

func (r *relayer) signProof(recipient, amountStr, transferID string) (string, error) {
	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return "", fmt.Errorf("bad amount %q", amountStr)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(r.signerKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("parse validator key: %w", err)
	}
	digest := bridge.ReleaseDigest(recipient, amount, common.HexToHash(transferID))
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return hex.EncodeToString(sig), nil
}
