// Package config defines the server's configuration shape and the
// lock-free global config owner, grounded on cmn/config.go's Config /
// globalConfigOwner idiom: a JSON-tagged struct tree, a package-level GCO
// holding the current *Config behind an atomic pointer for wait-free
// reads, and a Validate() error per sub-struct. Naming convention for
// env overrides mirrors the teacher's AIS_* -> SUBSTRATA_*.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/atomic"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type Validator interface {
	Validate() error
}

type (
	// StoreConf locates the append-style persistent object store file
	// (spec §4.1).
	StoreConf struct {
		Path           string `json:"path"`
		FlushInterval  time.Duration `json:"flush_interval"`
		CompactMinFree int64         `json:"compact_min_free_bytes"`
	}

	// ResourceConf locates the resource base directory served by the
	// HTTP resource service (spec §4.5).
	ResourceConf struct {
		BaseDir   string `json:"base_dir"`
		TmpSubdir string `json:"tmp_subdir"`
		// UploadQuota is the maximum bytes a single resource upload
		// may carry, enforced in ResourceUploadBegin (spec §4.3).
		UploadQuota int64 `json:"upload_quota_bytes"`
	}

	NetConf struct {
		GameAddr     string `json:"game_addr"`      // TCP, client protocol (spec §6)
		ResourceAddr string `json:"resource_addr"`   // fasthttp resource service (spec §4.5)
		AdminAddr    string `json:"admin_addr"`      // net/http admin + NFT metadata surface (spec §4.7)
		VoiceAddr    string `json:"voice_addr"`      // UDP voice relay (spec §4.11)
	}

	WebConf struct {
		PublicFilesDir    string        `json:"public_files_dir"`
		ChallengeDir      string        `json:"acme_challenge_dir"`
		ScreenshotDir     string        `json:"screenshot_dir"`
		PhotoDir          string        `json:"photo_dir"`
		TLSCertFile       string        `json:"tls_cert_file"`
		TLSKeyFile        string        `json:"tls_key_file"`
		SessionMaxAge     time.Duration `json:"session_max_age"` // 90 days, spec §3
		JWTSigningKey     string        `json:"jwt_signing_key"` // admin API bearer tokens, SPEC_FULL §10
		PasswordResetTTL  time.Duration `json:"password_reset_ttl"`
	}

	SMTPConf struct {
		Host     string `json:"host"`
		Port     int    `json:"port"`
		Username string `json:"username"`
		Password string `json:"password"`
		From     string `json:"from"`
	}

	DispatchConf struct {
		SubscriberQueueDepth int `json:"subscriber_queue_depth"`
		MaxOpenUploads       int `json:"max_open_uploads_per_conn"` // spec §5: "at most one"
	}

	Config struct {
		Store    StoreConf    `json:"store"`
		Resource ResourceConf `json:"resource"`
		Net      NetConf      `json:"net"`
		Web      WebConf      `json:"web"`
		SMTP     SMTPConf     `json:"smtp"`
		Dispatch DispatchConf `json:"dispatch"`
	}
)

func (c *StoreConf) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	return nil
}

func (c *ResourceConf) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("resource.base_dir must not be empty")
	}
	if c.UploadQuota <= 0 {
		return fmt.Errorf("resource.upload_quota_bytes must be positive")
	}
	return nil
}

func (c *NetConf) Validate() error {
	if c.GameAddr == "" {
		return fmt.Errorf("net.game_addr must not be empty")
	}
	return nil
}

func (c *DispatchConf) Validate() error {
	if c.SubscriberQueueDepth <= 0 {
		return fmt.Errorf("dispatch.subscriber_queue_depth must be positive")
	}
	if c.MaxOpenUploads <= 0 {
		c.MaxOpenUploads = 1 // spec §5 default: one open upload per connection
	}
	return nil
}

func (c *Config) Validate() error {
	for _, v := range []Validator{&c.Store, &c.Resource, &c.Net, &c.Dispatch} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a Config with the same shape a freshly deployed node
// would start from, overridable by the on-disk file and by environment.
func Default() *Config {
	return &Config{
		Store:    StoreConf{Path: "./data/world.store", FlushInterval: 2 * time.Second, CompactMinFree: 64 << 20},
		Resource: ResourceConf{BaseDir: "./data/resources", TmpSubdir: "tmp", UploadQuota: 512 << 20},
		Net:      NetConf{GameAddr: ":7600", ResourceAddr: ":7601", AdminAddr: ":7603", VoiceAddr: ":7602"},
		Web: WebConf{
			PublicFilesDir:   "./public",
			ChallengeDir:     "./data/acme-challenge",
			ScreenshotDir:    "./data/screenshots",
			PhotoDir:         "./data/photos",
			SessionMaxAge:    90 * 24 * time.Hour,
			PasswordResetTTL: 24 * time.Hour,
		},
		Dispatch: DispatchConf{SubscriberQueueDepth: 1024, MaxOpenUploads: 1},
	}
}

// Load reads a JSON config file over the defaults and applies
// SUBSTRATA_*-prefixed environment overrides, matching the teacher's
// dryRunInit() "environment overrides clivars" precedence.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := jsonAPI.Unmarshal(b, cfg); err != nil {
			return nil, err
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SUBSTRATA_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SUBSTRATA_RESOURCE_BASE_DIR"); v != "" {
		cfg.Resource.BaseDir = v
	}
	if v := os.Getenv("SUBSTRATA_GAME_ADDR"); v != "" {
		cfg.Net.GameAddr = v
	}
	if v := os.Getenv("SUBSTRATA_RESOURCE_ADDR"); v != "" {
		cfg.Net.ResourceAddr = v
	}
	if v := os.Getenv("SUBSTRATA_ADMIN_ADDR"); v != "" {
		cfg.Net.AdminAddr = v
	}
	if v := os.Getenv("SUBSTRATA_VOICE_ADDR"); v != "" {
		cfg.Net.VoiceAddr = v
	}
}

// globalConfigOwner mirrors cmn.globalConfigOwner: a mutex guarding
// updates plus an atomic.UnsafePointer for wait-free reads from any goroutine.
type globalConfigOwner struct {
	mtx sync.Mutex
	c   atomic.UnsafePointer
}

var GCO = &globalConfigOwner{}

func (gco *globalConfigOwner) Get() *Config {
	p := gco.c.Load()
	if p == nil {
		return Default()
	}
	return (*Config)(p)
}

func (gco *globalConfigOwner) Put(cfg *Config) {
	gco.c.Store(unsafe.Pointer(cfg))
}

func (gco *globalConfigOwner) BeginUpdate() *Config {
	gco.mtx.Lock()
	cur := gco.Get()
	clone := *cur
	return &clone
}

func (gco *globalConfigOwner) CommitUpdate(cfg *Config) {
	gco.c.Store(unsafe.Pointer(cfg))
	gco.mtx.Unlock()
}

func (gco *globalConfigOwner) DiscardUpdate() {
	gco.mtx.Unlock()
}
