/*
File Name:  Backend.go

Backend ties the YAML config, startup parameters, and every subsystem
(peer directory, access control, relays, extenders, local store) into one
value, following the teacher's Peernet.go Init/Connect shape: Init loads
and validates everything but touches no sockets; Connect starts the
listeners and any background workers, returning immediately.
*/

package core

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/QuantumGateNet/core/access"
	"github.com/QuantumGateNet/core/extender"
	"github.com/QuantumGateNet/core/protocol"
	"github.com/QuantumGateNet/core/relay"
	"github.com/QuantumGateNet/core/store"
)

// Backend is the library's top-level handle, returned by Init and driven
// by Connect/Shutdown.
type Backend struct {
	UserAgent string
	Config    *Config
	Params    StartupParameters
	Filters   Filters

	Peers     *PeerManager
	Access    *access.Manager
	Relays    *relay.Manager
	Extenders *extender.Manager
	Store     store.Store

	Stdout *multiWriter

	listeners []*tcpListener
	wg        sync.WaitGroup

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

// Init loads configFilename (falling back to the embedded default),
// resolves or creates the node's identity key, derives StartupParameters
// from the config unless the caller supplies an explicit params, validates
// everything, and wires up every subsystem without touching the network.
// It mirrors the teacher's Init(UserAgent, ConfigFilename, Filters,
// ConfigOut) contract, generalized to also accept an explicit params
// override for embedders that build StartupParameters programmatically.
func Init(userAgent, configFilename string, filters *Filters, params *StartupParameters) (backend *Backend, status int, err error) {
	cfg, loadStatus, err := LoadConfig(configFilename)
	if err != nil {
		switch loadStatus {
		case 0:
			return nil, ExitErrorConfigAccess, err
		case 1:
			return nil, ExitErrorConfigRead, err
		default:
			return nil, ExitErrorConfigParse, err
		}
	}

	hadKey := cfg.PrivateKey != ""
	keys, uuid, err := resolveIdentity(cfg)
	if err != nil {
		if !hadKey {
			return nil, ExitPrivateKeyCreate, err
		}
		return nil, ExitPrivateKeyCorrupt, err
	}

	effectiveParams := params
	if effectiveParams == nil {
		derived := startupParamsFromConfig(cfg, keys, uuid)
		effectiveParams = &derived
	}
	if err := effectiveParams.Validate(); err != nil {
		return nil, ExitInvalidParameters, err
	}

	if filters == nil {
		filters = &Filters{}
	}

	backend = &Backend{
		UserAgent: userAgent,
		Config:    cfg,
		Params:    *effectiveParams,
		Filters:   *filters,
		Peers:     NewPeerManager(runtime.NumCPU()),
		Access:    access.NewManager(time.Hour, time.Second, 20, time.Second, 100, access.PeerAccessAllowed, effectiveParams.RequireAuthentication),
		Relays:    relay.NewManager(runtime.NumCPU()),
		Extenders: extender.NewManager(),
		Store:     store.NewMemoryStore(),
		Stdout:    newMultiWriter(),
		shutdown:  make(chan struct{}),
	}
	backend.Extenders.Broadcast = backend.broadcastExtenderUpdate
	backend.initFilters()
	backend.Extenders.OnUnhandledException = backend.Filters.UnhandledExtenderException

	return backend, ExitSuccess, nil
}

// broadcastExtenderUpdate sends an ExtenderUpdate message to every
// currently-connected peer, satisfying §4.7's "the core broadcasts an
// ExtenderUpdate message to all currently-connected peers" whenever a
// local extender is registered or removed.
func (backend *Backend) broadcastExtenderUpdate(uuid protocol.ExtenderUUID, added bool) {
	payload := protocol.EncodeExtenderUpdate(protocol.ExtenderUpdatePayload{UUID: uuid, Added: added})
	msg := protocol.Message{Type: protocol.MessageTypeExtenderUpdate, Payload: payload}
	backend.Peers.Range(func(peer *PeerInfo) {
		if err := backend.sendMessage(peer, msg); err != nil {
			backend.Filters.LogError("broadcastExtenderUpdate", "peer %d: %v", peer.LUID, err)
		}
	})
}

// resolveIdentity decodes cfg.PrivateKey into an Ed25519 key pair,
// generating and persisting a new one if none was configured.
func resolveIdentity(cfg *Config) (*KeyPair, protocol.PeerUUID, error) {
	if cfg.PrivateKey == "" {
		priv, pub, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, protocol.PeerUUID{}, fmt.Errorf("core: generate identity key: %w", err)
		}
		cfg.PrivateKey = hex.EncodeToString(priv.Seed())
		if err := cfg.SaveConfig(); err != nil {
			return nil, protocol.PeerUUID{}, fmt.Errorf("core: persist generated identity key: %w", err)
		}
		keys := &KeyPair{Private: priv, Public: pub}
		return keys, protocol.NewPeerUUIDEd25519(pub), nil
	}

	seed, err := hex.DecodeString(cfg.PrivateKey)
	if err != nil || len(seed) != ed25519.SeedSize {
		return nil, protocol.PeerUUID{}, fmt.Errorf("core: private key is not a valid %d-byte hex seed", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	keys := &KeyPair{Private: priv, Public: pub}
	return keys, protocol.NewPeerUUIDEd25519(pub), nil
}

// Connect binds every configured TCP listener port (§4.8) and starts each
// accept loop in the background. A port that fails to bind is reported
// through LogError and skipped; Connect returns ExitListenerFailed only when
// none of the configured ports could be bound. Dialing is the caller's
// responsibility via ConnectTo.
func (backend *Backend) Connect() (int, error) {
	if !backend.Params.Listeners.Enable {
		return ExitSuccess, nil
	}

	for _, port := range backend.Params.Listeners.TCPPorts {
		l, err := newTCPListener(backend, port)
		if err != nil {
			backend.Filters.LogError("Connect", "binding TCP port %d: %v", port, err)
			continue
		}
		backend.listeners = append(backend.listeners, l)
		backend.wg.Add(1)
		go func() {
			defer backend.wg.Done()
			l.run()
		}()
	}

	if len(backend.Params.Listeners.TCPPorts) > 0 && len(backend.listeners) == 0 {
		return ExitListenerFailed, fmt.Errorf("core: could not bind any configured listener")
	}
	return ExitSuccess, nil
}

// Shutdown closes every listener, waits for every goroutine counted in
// backend.wg (the accept loops and the per-connection goroutines started by
// the listeners and by ConnectTo), and returns ExitGraceful. It does not
// signal or close connected peer sessions, so it returns only after each
// of them has ended on its own.
func (backend *Backend) Shutdown() int {
	backend.shutdownOnce.Do(func() {
		close(backend.shutdown)
		for _, l := range backend.listeners {
			l.close()
		}
	})
	backend.wg.Wait()
	return ExitGraceful
}
