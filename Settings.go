/*
File Name:  Settings.go

StartupParameters (§6): the argument bundle passed to Init, as distinct
from the YAML Config that backs its defaults. Grounded on the teacher's
Settings.go, which held the same kind of process-wide tunables (LogFile,
Listen, PrivateKey, SeedList) before Config.go took over persistence.
*/

package core

import (
	"crypto/ed25519"
	"fmt"

	"github.com/QuantumGateNet/core/protocol"
)

// KeyPair carries a startup identity key, PEM-decoded for NIST curves or
// raw octets for modern curves (§6). Only Ed25519 raw octets are
// implemented; the PEM/NIST branch is left for a future signature family.
type KeyPair struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// StartupParameters is the argument bundle Init validates and applies
// atomically (§6).
type StartupParameters struct {
	// UUID must be a valid Peer-type UUID matching Keys.Public when Keys
	// is set.
	UUID protocol.PeerUUID

	// Keys is required when RequireAuthentication is true.
	Keys *KeyPair

	// GlobalSharedSecret is carried in the startup parameters only; session
	// key derivation does not mix it in, and no other code reads it.
	GlobalSharedSecret []byte

	RequireAuthentication bool

	SupportedAlgorithms AlgorithmSet

	Listeners ListenerConfig
	Relays    RelayConfig

	NumPreGeneratedKeysPerAlgorithm uint32
	EnableExtenders                 bool

	SecurityLevel SecurityLevel
	Custom        SecurityParameters
}

// ErrMismatchedUUIDKeyPair is returned when Keys.Public does not derive
// the UUID supplied alongside it (§7 Argument errors).
var ErrMismatchedUUIDKeyPair = fmt.Errorf("core: UUID does not match the supplied public key")

// ErrAuthenticationRequiresKeys is returned when RequireAuthentication is
// set but no key pair was supplied (§6).
var ErrAuthenticationRequiresKeys = fmt.Errorf("core: require_authentication requires keys")

// Validate applies §6's StartupParameters rules.
func (p StartupParameters) Validate() error {
	if p.RequireAuthentication && p.Keys == nil {
		return ErrAuthenticationRequiresKeys
	}
	if p.Keys != nil && !p.UUID.VerifyEd25519(p.Keys.Public) {
		return ErrMismatchedUUIDKeyPair
	}
	if len(p.SupportedAlgorithms.Hashes) == 0 ||
		len(p.SupportedAlgorithms.PrimaryAsymmetric) == 0 ||
		len(p.SupportedAlgorithms.SecondaryAsymmetric) == 0 ||
		len(p.SupportedAlgorithms.Symmetric) == 0 ||
		len(p.SupportedAlgorithms.Compression) == 0 {
		return ErrEmptyAlgorithmVocabulary
	}
	if _, err := p.SecurityLevel.Resolve(p.Custom); err != nil {
		return err
	}
	return nil
}

// startupParamsFromConfig builds a StartupParameters from a loaded Config
// plus the identity key pair Init resolved from it, so callers that only
// touch the YAML file never have to hand-assemble the bundle themselves.
func startupParamsFromConfig(cfg *Config, keys *KeyPair, uuid protocol.PeerUUID) StartupParameters {
	return StartupParameters{
		UUID:                            uuid,
		Keys:                            keys,
		RequireAuthentication:           cfg.RequireAuthentication,
		SupportedAlgorithms:             cfg.SupportedAlgorithms,
		Listeners:                       cfg.Listeners,
		Relays:                          cfg.Relays,
		NumPreGeneratedKeysPerAlgorithm: cfg.NumPreGeneratedKeysPerAlgorithm,
		EnableExtenders:                 cfg.EnableExtenders,
		SecurityLevel:                   cfg.SecurityLevel,
		Custom:                          cfg.Custom,
	}
}
