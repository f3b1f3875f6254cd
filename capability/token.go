// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/warden-foundation/warden/lib/codec"
	"github.com/warden-foundation/warden/lib/ref"
)

// proofSignatureSize is the fixed size of an Ed25519 signature.
const proofSignatureSize = ed25519.SignatureSize // 64 bytes

// Proof is the CBOR-encoded payload of a signed authorization proof: a
// portable attestation that the kernel granted a specific capability
// for a specific operation at a specific instant. Drivers hand proofs
// to out-of-kernel collaborators (host services, remote backends) that
// cannot consult the store directly.
//
// A proof is not a capability: holding one conveys no rights, only
// evidence that a grant happened. It is scoped to an audience so a
// proof minted for one backend cannot be replayed against another.
type Proof struct {
	// Capability is the granted capability's ID.
	Capability ref.CapabilityID `cbor:"1,keyasint"`

	// Resource is the resource the grant covered.
	Resource ref.ResourceID `cbor:"2,keyasint"`

	// Requestor is the process the grant was issued to.
	Requestor ref.ProcessID `cbor:"3,keyasint"`

	// Operation is the wire name of the granted operation.
	Operation string `cbor:"4,keyasint"`

	// Audience is the backend this proof is scoped to. A proof for
	// one audience fails verification against another.
	Audience string `cbor:"5,keyasint"`

	// IssuedAt and ExpiresAt are Unix timestamps (seconds). Proofs
	// are short-lived; expiry bounds the replay window.
	IssuedAt  int64 `cbor:"6,keyasint"`
	ExpiresAt int64 `cbor:"7,keyasint"`
}

// Errors returned by proof verification.
var (
	ErrProofTooShort         = errors.New("capability: proof too short for signature")
	ErrProofInvalidSignature = errors.New("capability: invalid proof signature")
	ErrProofExpired          = errors.New("capability: proof has expired")
	ErrProofAudienceMismatch = errors.New("capability: proof audience does not match")
)

// GenerateProofKeypair creates an Ed25519 keypair for proof signing.
// The private key stays with the kernel authority; the public key is
// distributed to verifying backends.
func GenerateProofKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("capability: generating proof keypair: %w", err)
	}
	return public, private, nil
}

// MintProof signs a proof and returns the raw wire bytes: CBOR-encoded
// payload followed by the 64-byte Ed25519 signature.
func MintProof(privateKey ed25519.PrivateKey, proof *Proof) ([]byte, error) {
	payload, err := codec.Marshal(proof)
	if err != nil {
		return nil, fmt.Errorf("capability: encoding proof payload: %w", err)
	}

	signature := ed25519.Sign(privateKey, payload)

	result := make([]byte, len(payload)+proofSignatureSize)
	copy(result, payload)
	copy(result[len(payload):], signature)

	return result, nil
}

// VerifyProof verifies a proof against the current wall clock.
func VerifyProof(publicKey ed25519.PublicKey, proofBytes []byte, expectedAudience string) (*Proof, error) {
	return VerifyProofAt(publicKey, proofBytes, expectedAudience, time.Now())
}

// VerifyProofAt splits the raw bytes, verifies the signature, decodes
// the payload, and checks expiry and audience. The explicit instant
// supports deterministic testing.
func VerifyProofAt(publicKey ed25519.PublicKey, proofBytes []byte, expectedAudience string, now time.Time) (*Proof, error) {
	if len(proofBytes) <= proofSignatureSize {
		return nil, ErrProofTooShort
	}

	splitPoint := len(proofBytes) - proofSignatureSize
	payload := proofBytes[:splitPoint]
	signature := proofBytes[splitPoint:]

	if !ed25519.Verify(publicKey, payload, signature) {
		return nil, ErrProofInvalidSignature
	}

	var proof Proof
	if err := codec.Unmarshal(payload, &proof); err != nil {
		return nil, fmt.Errorf("capability: decoding proof payload: %w", err)
	}

	if now.Unix() >= proof.ExpiresAt {
		return nil, ErrProofExpired
	}
	if proof.Audience != expectedAudience {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrProofAudienceMismatch, proof.Audience, expectedAudience)
	}

	return &proof, nil
}

// ProofForDecision builds an unsigned proof from a granted decision.
// ttl bounds the replay window.
func ProofForDecision(decision AccessDecision, op Operation, requestor ref.ProcessID, audience string, now time.Time, ttl time.Duration) (*Proof, error) {
	if !decision.Granted || decision.Capability == nil {
		return nil, errors.New("capability: cannot build proof from a denied decision")
	}
	return &Proof{
		Capability: decision.Capability.ID,
		Resource:   decision.Capability.Resource,
		Requestor:  requestor,
		Operation:  op.String(),
		Audience:   audience,
		IssuedAt:   now.Unix(),
		ExpiresAt:  now.Add(ttl).Unix(),
	}, nil
}
