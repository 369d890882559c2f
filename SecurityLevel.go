/*
File Name:  SecurityLevel.go

Security level presets (§6) and the Custom SecurityParameters validation
rules. Grounded on the teacher's Settings.go/Config.go YAML-tagged struct
style, generalized from a flat config blob to a tunable-parameter tuple
selected by level.
*/

package core

import (
	"errors"
	"time"
)

// SecurityLevel selects one of five fixed parameter tuples, or Custom to
// supply an explicit SecurityParameters struct.
type SecurityLevel uint8

const (
	SecurityLevel1 SecurityLevel = iota + 1
	SecurityLevel2
	SecurityLevel3
	SecurityLevel4
	SecurityLevel5
	SecurityLevelCustom
)

// KeyUpdateParameters bounds when a session rekeys (§4.5).
type KeyUpdateParameters struct {
	MinInterval                  time.Duration `yaml:"min_interval"`
	MaxInterval                  time.Duration `yaml:"max_interval"`
	RequireAfterNumProcessedBytes uint64       `yaml:"require_after_num_processed_bytes"`
}

// MessageParameters bounds random prefix/padding and message age (§4.3/§4.4).
type MessageParameters struct {
	MaxAge           time.Duration `yaml:"max_age"`
	MinPrefixSize    uint16        `yaml:"min_prefix_size"`
	MaxPrefixSize    uint16        `yaml:"max_prefix_size"`
	MinPaddingSize   uint16        `yaml:"min_padding_size"`
	MaxPaddingSize   uint16        `yaml:"max_padding_size"`
}

// NoiseParameters bounds decoy traffic (§4.5).
type NoiseParameters struct {
	Enabled         bool          `yaml:"enabled"`
	MinInterval     time.Duration `yaml:"min_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	MinMessageSize  uint32        `yaml:"min_message_size"`
	MaxMessageSize  uint32        `yaml:"max_message_size"`
	MaxPlaintext    uint32        `yaml:"max_plaintext"`
}

// SecurityParameters is the full tunable tuple a SecurityLevel resolves to,
// or that Level 6 ("Custom") supplies directly.
type SecurityParameters struct {
	MaxHandshakeDelay  time.Duration       `yaml:"max_handshake_delay"`
	MaxHandshakeDuration time.Duration     `yaml:"max_handshake_duration"`
	KeyUpdate          KeyUpdateParameters `yaml:"key_update"`
	Message            MessageParameters   `yaml:"message"`
	Noise              NoiseParameters     `yaml:"noise"`
}

// ErrInvalidSecurityParameters wraps every validation failure in
// Validate, matching §6's "invalid parameter sets return InvalidArgument".
var ErrInvalidSecurityParameters = errors.New("core: invalid security parameters")

// Validate checks every rule §6 lists for a Custom SecurityParameters
// struct. Durations are checked for non-negativity first since the
// ordering checks below would otherwise be meaningless on negative input.
func (p SecurityParameters) Validate() error {
	durations := []time.Duration{
		p.MaxHandshakeDelay, p.MaxHandshakeDuration,
		p.KeyUpdate.MinInterval, p.KeyUpdate.MaxInterval,
		p.Message.MaxAge, p.Noise.MinInterval, p.Noise.MaxInterval,
	}
	for _, d := range durations {
		if d < 0 {
			return errWithReason("duration must be non-negative")
		}
	}

	if p.MaxHandshakeDelay > p.MaxHandshakeDuration {
		return errWithReason("max_handshake_delay must be <= max_handshake_duration")
	}
	if p.KeyUpdate.MinInterval > p.KeyUpdate.MaxInterval {
		return errWithReason("key_update.min_interval must be <= max_interval")
	}
	const minRekeyBytes = 10 * 1 << 20 // 10 MiB
	if p.KeyUpdate.RequireAfterNumProcessedBytes < minRekeyBytes {
		return errWithReason("key_update.require_after_num_processed_bytes must be >= 10 MiB")
	}
	if p.Message.MinPrefixSize > p.Message.MaxPrefixSize {
		return errWithReason("message.min_prefix_size must be <= max_prefix_size")
	}
	if p.Message.MinPaddingSize > p.Message.MaxPaddingSize {
		return errWithReason("message.min_padding_size must be <= max_padding_size")
	}
	if uint32(p.Message.MaxPrefixSize) > 65535 || uint32(p.Message.MaxPaddingSize) > 65535 {
		return errWithReason("random-prefix/internal-padding sizes must be <= 65535")
	}
	if p.Noise.MinMessageSize > p.Noise.MaxMessageSize {
		return errWithReason("noise.min_message_size must be <= max_message_size")
	}
	if p.Noise.MaxMessageSize > p.Noise.MaxPlaintext {
		return errWithReason("noise.max_message_size must be <= max_plaintext")
	}

	return nil
}

func errWithReason(reason string) error {
	return errors.New("core: invalid security parameters: " + reason)
}

// securityPresets maps levels 1-5 to their fixed tuples. Level 1 disables
// noise and prefix padding; level 5 maximizes both (§6).
var securityPresets = map[SecurityLevel]SecurityParameters{
	SecurityLevel1: {
		MaxHandshakeDelay:    0,
		MaxHandshakeDuration: 30 * time.Second,
		KeyUpdate: KeyUpdateParameters{
			MinInterval: time.Hour, MaxInterval: 4 * time.Hour,
			RequireAfterNumProcessedBytes: 1 << 30,
		},
		Message: MessageParameters{MaxAge: 5 * time.Minute},
		Noise:   NoiseParameters{Enabled: false},
	},
	SecurityLevel2: {
		MaxHandshakeDelay:    50 * time.Millisecond,
		MaxHandshakeDuration: 30 * time.Second,
		KeyUpdate: KeyUpdateParameters{
			MinInterval: 30 * time.Minute, MaxInterval: 2 * time.Hour,
			RequireAfterNumProcessedBytes: 512 << 20,
		},
		Message: MessageParameters{
			MaxAge: 5 * time.Minute, MaxPrefixSize: 64, MaxPaddingSize: 64,
		},
		Noise: NoiseParameters{
			Enabled: true, MinInterval: time.Minute, MaxInterval: 5 * time.Minute,
			MinMessageSize: 16, MaxMessageSize: 256, MaxPlaintext: 1 << 16,
		},
	},
	SecurityLevel3: {
		MaxHandshakeDelay:    100 * time.Millisecond,
		MaxHandshakeDuration: 30 * time.Second,
		KeyUpdate: KeyUpdateParameters{
			MinInterval: 15 * time.Minute, MaxInterval: time.Hour,
			RequireAfterNumProcessedBytes: 256 << 20,
		},
		Message: MessageParameters{
			MaxAge: 2 * time.Minute, MinPrefixSize: 16, MaxPrefixSize: 256,
			MinPaddingSize: 16, MaxPaddingSize: 256,
		},
		Noise: NoiseParameters{
			Enabled: true, MinInterval: 30 * time.Second, MaxInterval: 2 * time.Minute,
			MinMessageSize: 32, MaxMessageSize: 1024, MaxPlaintext: 1 << 16,
		},
	},
	SecurityLevel4: {
		MaxHandshakeDelay:    200 * time.Millisecond,
		MaxHandshakeDuration: 20 * time.Second,
		KeyUpdate: KeyUpdateParameters{
			MinInterval: 5 * time.Minute, MaxInterval: 30 * time.Minute,
			RequireAfterNumProcessedBytes: 128 << 20,
		},
		Message: MessageParameters{
			MaxAge: time.Minute, MinPrefixSize: 64, MaxPrefixSize: 1024,
			MinPaddingSize: 64, MaxPaddingSize: 1024,
		},
		Noise: NoiseParameters{
			Enabled: true, MinInterval: 10 * time.Second, MaxInterval: time.Minute,
			MinMessageSize: 64, MaxMessageSize: 4096, MaxPlaintext: 1 << 17,
		},
	},
	SecurityLevel5: {
		MaxHandshakeDelay:    500 * time.Millisecond,
		MaxHandshakeDuration: 15 * time.Second,
		KeyUpdate: KeyUpdateParameters{
			MinInterval: time.Minute, MaxInterval: 10 * time.Minute,
			RequireAfterNumProcessedBytes: 10 << 20,
		},
		Message: MessageParameters{
			MaxAge: 20 * time.Second, MinPrefixSize: 256, MaxPrefixSize: 65535,
			MinPaddingSize: 256, MaxPaddingSize: 65535,
		},
		Noise: NoiseParameters{
			Enabled: true, MinInterval: time.Second, MaxInterval: 10 * time.Second,
			MinMessageSize: 128, MaxMessageSize: 65535, MaxPlaintext: 1 << 17,
		},
	},
}

// Resolve returns the SecurityParameters for a preset level, or custom
// itself (validated) when level is SecurityLevelCustom.
func (level SecurityLevel) Resolve(custom SecurityParameters) (SecurityParameters, error) {
	if level == SecurityLevelCustom {
		if err := custom.Validate(); err != nil {
			return SecurityParameters{}, err
		}
		return custom, nil
	}
	preset, ok := securityPresets[level]
	if !ok {
		return SecurityParameters{}, errWithReason("unknown security level")
	}
	return preset, nil
}
