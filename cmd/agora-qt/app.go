package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"github.com/agoranet-labs/agora-wallet/config"
	"github.com/agoranet-labs/agora-wallet/internal/engine"
	"github.com/agoranet-labs/agora-wallet/internal/indexer"
	"github.com/agoranet-labs/agora-wallet/internal/log"
	"github.com/agoranet-labs/agora-wallet/internal/resolver"
)

// qtSettings is the persistent configuration written to qt-settings.json.
type qtSettings struct {
	IndexerEndpoint string            `json:"indexer_endpoint"`
	DataDir         string            `json:"data_dir"`
	Network         string            `json:"network"`
	Contacts        map[string]string `json:"contacts,omitempty"`
}

// App manages application lifecycle, settings, and the wallet session.
type App struct {
	ctx context.Context

	mu              sync.RWMutex
	indexerEndpoint string
	dataDir         string
	networkName     string // "mainnet" or "testnet"
	contacts        map[string]string

	session  *engine.Session
	resolver *resolver.Static

	wallet  *WalletService
	network *NetworkService
}

// NewApp creates the application with default settings.
func NewApp() *App {
	app := &App{
		indexerEndpoint: "ws://127.0.0.1:8645/ws",
		dataDir:         config.DefaultDataDir(),
		networkName:     string(config.Mainnet),
		contacts:        make(map[string]string),
		resolver:        resolver.NewStatic(nil),
	}
	app.wallet = &WalletService{app: app}
	app.network = &NetworkService{app: app}
	app.loadSettings()
	return app
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	log.Init("info", false)

	if err := a.openSession(); err != nil {
		log.Wallet.Error().Err(err).Msg("session open failed")
	}
}

func (a *App) shutdown(_ context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		a.session.Close()
		a.session = nil
	}
}

// openSession builds the engine session for the current settings. Any
// previous session is torn down first.
func (a *App) openSession() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		a.session.Close()
		a.session = nil
	}

	cfg := config.Default(config.NetworkType(a.networkName))
	cfg.DataDir = filepath.Join(a.dataDir, a.networkName)
	cfg.Indexer.Endpoint = a.indexerEndpoint

	for name, addr := range a.contacts {
		if parsed, err := parseContactAddress(addr); err == nil {
			a.resolver.Add(name, parsed)
		}
	}

	s, err := engine.New(cfg, engine.Options{
		Resolver: a.resolver,
		OnConnState: func(st indexer.State) {
			if a.ctx != nil {
				runtime.EventsEmit(a.ctx, "connection:state", st.String())
			}
		},
	})
	if err != nil {
		return err
	}
	a.session = s

	if ok, err := s.HasWallet(); err == nil && ok {
		if _, err := s.Open(); err != nil {
			log.Wallet.Warn().Err(err).Msg("open stored wallet")
		}
	}
	return nil
}

// currentSession returns the live session or an error the frontend can show.
func (a *App) currentSession() (*engine.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return nil, fmt.Errorf("no active session")
	}
	return a.session, nil
}

func (a *App) settingsPath() string {
	return filepath.Join(a.dataDir, "qt-settings.json")
}

func (a *App) loadSettings() {
	data, err := os.ReadFile(a.settingsPath())
	if err != nil {
		return // first launch or missing file, use defaults
	}
	var s qtSettings
	if err := json.Unmarshal(data, &s); err != nil {
		return
	}
	if s.IndexerEndpoint != "" {
		a.indexerEndpoint = s.IndexerEndpoint
	}
	if s.DataDir != "" {
		a.dataDir = s.DataDir
	}
	if s.Network != "" {
		a.networkName = s.Network
	}
	if s.Contacts != nil {
		a.contacts = s.Contacts
	}
}

func (a *App) saveSettings() {
	a.mu.RLock()
	s := qtSettings{
		IndexerEndpoint: a.indexerEndpoint,
		DataDir:         a.dataDir,
		Network:         a.networkName,
		Contacts:        a.contacts,
	}
	a.mu.RUnlock()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return
	}
	_ = os.MkdirAll(filepath.Dir(a.settingsPath()), 0700)
	_ = os.WriteFile(a.settingsPath(), data, 0600)
}

// GetIndexerEndpoint returns the current indexer websocket endpoint.
func (a *App) GetIndexerEndpoint() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.indexerEndpoint
}

// SetIndexerEndpoint updates the indexer endpoint and rebuilds the session.
func (a *App) SetIndexerEndpoint(endpoint string) error {
	a.mu.Lock()
	a.indexerEndpoint = endpoint
	a.mu.Unlock()
	a.saveSettings()
	return a.openSession()
}

// GetDataDir returns the current data directory.
func (a *App) GetDataDir() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dataDir
}

// SetDataDir updates the data directory and rebuilds the session.
func (a *App) SetDataDir(dir string) error {
	a.mu.Lock()
	a.dataDir = dir
	a.mu.Unlock()
	a.saveSettings()
	return a.openSession()
}

// GetNetwork returns the current network name ("mainnet" or "testnet").
func (a *App) GetNetwork() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.networkName
}

// SetNetwork switches networks and rebuilds the session.
func (a *App) SetNetwork(network string) error {
	a.mu.Lock()
	a.networkName = network
	a.mu.Unlock()
	a.saveSettings()
	return a.openSession()
}

// AddContact registers a marketplace identifier for send resolution.
func (a *App) AddContact(name, address string) error {
	addr, err := parseContactAddress(address)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.contacts[name] = address
	a.mu.Unlock()
	a.resolver.Add(name, addr)
	a.saveSettings()
	return nil
}

// GetContacts returns the contact table.
func (a *App) GetContacts() map[string]string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]string, len(a.contacts))
	for k, v := range a.contacts {
		out[k] = v
	}
	return out
}
