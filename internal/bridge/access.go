package bridge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// requiredRole maps operations to the role the role-based policy demands.
// Lock and burn are open to any user and never reach the policy.
var requiredRole = map[Operation]string{
	OpUnlock:            RoleRelayer,
	OpMint:              RoleRelayer,
	OpPause:             RoleAdmin,
	OpUnpause:           RoleAdmin,
	OpManageRoles:       RoleAdmin,
	OpEmergencyWithdraw: RoleAdmin,
	OpRotateValidator:   RoleAdmin,
}

// RolePolicy authorizes callers against a role store. Revocation takes effect
// immediately: every call re-reads the store.
type RolePolicy struct {
	store RoleManager
}

// NewRolePolicy wraps a role store. Seed grants the deployer principal both
// ADMIN and RELAYER when the store is still empty (genesis seeding).
func NewRolePolicy(ctx context.Context, store RoleManager, deployer string) (*RolePolicy, error) {
	for _, role := range []string{RoleAdmin, RoleRelayer} {
		has, err := store.Has(ctx, role, deployer)
		if err != nil {
			return nil, fmt.Errorf("read role store: %w", err)
		}
		if !has {
			if err := store.Grant(ctx, role, deployer); err != nil {
				return nil, fmt.Errorf("seed deployer role %s: %w", role, err)
			}
		}
	}
	return &RolePolicy{store: store}, nil
}

// Authorize checks the caller holds the role required for the operation.
func (p *RolePolicy) Authorize(ctx context.Context, claim Claim) error {
	role, ok := requiredRole[claim.Op]
	if !ok {
		return nil
	}
	has, err := p.store.Has(ctx, role, claim.Caller)
	if err != nil {
		return fmt.Errorf("read role store: %w", err)
	}
	if !has {
		return fmt.Errorf("%w: %s requires %s", ErrUnauthorized, claim.Op, role)
	}
	return nil
}

// Store exposes the underlying role manager for endpoint wiring.
func (p *RolePolicy) Store() RoleManager { return p.store }

// SignaturePolicy authorizes unlock/mint by verifying a secp256k1 signature
// from a single designated validator key over (recipient, amount, transferId).
// Any party may submit a call carrying a valid proof. Administrative
// operations are restricted to the configured admin principal, which may
// rotate the validator key. There is deliberately no check that the relayed
// amount matches the origin side; the trust boundary is the validator key.
type SignaturePolicy struct {
	mu        sync.RWMutex
	validator common.Address
	admin     string
}

// NewSignaturePolicy builds a policy for the given validator address and admin
// principal.
func NewSignaturePolicy(validator common.Address, admin string) *SignaturePolicy {
	return &SignaturePolicy{validator: validator, admin: strings.ToLower(admin)}
}

// Authorize verifies the claim against the validator key or, for
// administrative operations, the admin principal.
func (p *SignaturePolicy) Authorize(ctx context.Context, claim Claim) error {
	role, ok := requiredRole[claim.Op]
	if !ok {
		return nil
	}
	if role == RoleAdmin {
		if !strings.EqualFold(claim.Caller, p.adminPrincipal()) {
			return fmt.Errorf("%w: %s requires the admin principal", ErrUnauthorized, claim.Op)
		}
		return nil
	}

	if len(claim.Proof) != crypto.SignatureLength {
		return fmt.Errorf("%w: proof must be a %d-byte signature", ErrUnauthorized, crypto.SignatureLength)
	}
	if claim.Amount == nil {
		return fmt.Errorf("%w: missing amount in claim", ErrUnauthorized)
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, claim.Proof)
	// Accept both 0/1 and 27/28 recovery ids.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	digest := ReleaseDigest(claim.Recipient, claim.Amount, claim.TransferID)
	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return fmt.Errorf("%w: signature recovery failed: %v", ErrUnauthorized, err)
	}
	recovered := crypto.PubkeyToAddress(*pub)

	p.mu.RLock()
	validator := p.validator
	p.mu.RUnlock()

	if recovered != validator {
		return fmt.Errorf("%w: signer %s is not the validator", ErrUnauthorized, recovered.Hex())
	}
	return nil
}

// Rotate replaces the validator key. Admin only.
func (p *SignaturePolicy) Rotate(ctx context.Context, claim Claim, next common.Address) error {
	claim.Op = OpRotateValidator
	if err := p.Authorize(ctx, claim); err != nil {
		return err
	}
	p.mu.Lock()
	p.validator = next
	p.mu.Unlock()
	return nil
}

// Validator returns the current validator address.
func (p *SignaturePolicy) Validator() common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.validator
}

func (p *SignaturePolicy) adminPrincipal() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.admin
}
