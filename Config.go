/*
File Name:  Config.go

YAML configuration (§6 Startup parameters), embedded default via go:embed,
following the teacher's Settings.go read-fallback-to-embedded-default /
marshal-and-write pattern exactly, generalized from Peernet's flat
LogFile/Listen/PrivateKey/SeedList blob to QuantumGate's startup
parameters, listener config, relay config and security level.
*/

package core

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/QuantumGateNet/core/crypto"
)

// Version is the current core library version
const Version = "0.1"

//go:embed Settings.yaml
var defaultSettings []byte

// ListenerConfig carries §6's `listeners` startup parameter. UDPPorts is
// accepted and round-tripped but never dialed: NAT hole-punching and a UDP
// transport are explicit non-goals, so the field exists only so operators
// can express intent without the config silently dropping it.
type ListenerConfig struct {
	TCPPorts           []uint16 `yaml:"TCPPorts"`
	Enable             bool     `yaml:"Enable"`
	EnableNATTraversal bool     `yaml:"EnableNATTraversal"`
	UDPPorts           []uint16 `yaml:"UDPPorts"`
}

// RelayConfig carries §6's `relays` startup parameter.
type RelayConfig struct {
	Enable                 bool  `yaml:"Enable"`
	IPv4ExcludedPrefixBits uint8 `yaml:"IPv4ExcludedPrefixBits"`
	IPv6ExcludedPrefixBits uint8 `yaml:"IPv6ExcludedPrefixBits"`
}

// AlgorithmSet carries §6's `supported_algorithms` startup parameter: one
// non-empty vocabulary subset per algorithm family.
type AlgorithmSet struct {
	Hashes              []crypto.Hash        `yaml:"Hashes"`
	PrimaryAsymmetric   []crypto.Asymmetric  `yaml:"PrimaryAsymmetric"`
	SecondaryAsymmetric []crypto.Asymmetric  `yaml:"SecondaryAsymmetric"`
	Symmetric           []crypto.AEAD        `yaml:"Symmetric"`
	Compression         []crypto.Compression `yaml:"Compression"`
}

// Config is the top-level, YAML-marshaled configuration (§6).
type Config struct {
	LogFile string `yaml:"LogFile"`

	Listeners ListenerConfig `yaml:"Listeners"`
	Relays    RelayConfig    `yaml:"Relays"`

	RequireAuthentication           bool   `yaml:"RequireAuthentication"`
	EnableExtenders                 bool   `yaml:"EnableExtenders"`
	NumPreGeneratedKeysPerAlgorithm uint32 `yaml:"NumPreGeneratedKeysPerAlgorithm"`

	SecurityLevel SecurityLevel      `yaml:"SecurityLevel"`
	Custom        SecurityParameters `yaml:"Custom,omitempty"`

	SupportedAlgorithms AlgorithmSet `yaml:"SupportedAlgorithms"`

	// PrivateKey is the hex-encoded Ed25519 seed identifying this node.
	// Empty means "generate one on first run and persist it".
	PrivateKey string `yaml:"PrivateKey"`

	filename string
}

// ErrEmptyAlgorithmVocabulary is returned when a Config's
// SupportedAlgorithms lists an empty subset for a required family (§6).
var ErrEmptyAlgorithmVocabulary = fmt.Errorf("core: supported_algorithms must list at least one entry per family")

// Validate checks the `supported_algorithms` non-empty-subset rule and
// resolves/validates the security level in one pass.
func (c *Config) Validate() error {
	if len(c.SupportedAlgorithms.Hashes) == 0 ||
		len(c.SupportedAlgorithms.PrimaryAsymmetric) == 0 ||
		len(c.SupportedAlgorithms.SecondaryAsymmetric) == 0 ||
		len(c.SupportedAlgorithms.Symmetric) == 0 ||
		len(c.SupportedAlgorithms.Compression) == 0 {
		return ErrEmptyAlgorithmVocabulary
	}
	_, err := c.SecurityLevel.Resolve(c.Custom)
	return err
}

// SecurityParameters resolves the configured security level (or Custom
// tuple) into the effective parameter set.
func (c *Config) SecurityParameters() (SecurityParameters, error) {
	return c.SecurityLevel.Resolve(c.Custom)
}

// LoadConfig reads the YAML configuration file, falling back to the
// embedded default when filename does not exist or is empty, mirroring
// the teacher's LoadConfig status-code contract.
// Status: 0 = error checking file, 1 = error reading, 2 = error parsing, 3 = success.
func LoadConfig(filename string) (config *Config, status int, err error) {
	var data []byte

	stats, statErr := os.Stat(filename)
	switch {
	case statErr != nil && os.IsNotExist(statErr):
		data = defaultSettings
	case statErr == nil && stats.Size() == 0:
		data = defaultSettings
	case statErr != nil:
		return nil, 0, statErr
	default:
		if data, err = os.ReadFile(filename); err != nil {
			return nil, 1, err
		}
	}

	config = &Config{filename: filename}
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, 2, err
	}

	if err = config.Validate(); err != nil {
		return nil, 2, err
	}

	return config, 3, nil
}

// SaveConfig marshals c back to the file it was loaded from.
func (c *Config) SaveConfig() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("core: marshal config: %w", err)
	}
	if err := os.WriteFile(c.filename, data, 0644); err != nil {
		return fmt.Errorf("core: write config %q: %w", c.filename, err)
	}
	return nil
}
