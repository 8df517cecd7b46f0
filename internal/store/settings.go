package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"sjsage522/producttracker/internal/extractor"
	"sjsage522/producttracker/logger"
	perrors "sjsage522/producttracker/pkg/errors"
	"sjsage522/producttracker/services/kvstore"
)

// SettingsKey is the key the settings record is stored under
const SettingsKey = "settings"

// OtherSite is the enablement toggle for sites without a dedicated strategy
const OtherSite = "other"

// DefaultRetentionDays keeps products for a year
const DefaultRetentionDays = 365

// Settings is the persisted tracker configuration
type Settings struct {
	RetentionDays   int             `json:"retentionDays"`
	TrackingEnabled bool            `json:"trackingEnabled"`
	DebugMode       bool            `json:"debugMode"`
	EnabledSites    map[string]bool `json:"enabledSites"`
}

// SiteEnabled applies the per-site gate: known sites use their own toggle,
// everything else the "other" toggle. A missing toggle reads as disabled.
func (s Settings) SiteEnabled(site string, known []string) bool {
	for _, k := range known {
		if k == site {
			return s.EnabledSites[site]
		}
	}
	return s.EnabledSites[OtherSite]
}

// SettingsPatch is a partial update; nil fields are left unchanged.
// EnabledSites replaces the whole map when present.
type SettingsPatch struct {
	RetentionDays   *int            `json:"retentionDays,omitempty"`
	TrackingEnabled *bool           `json:"trackingEnabled,omitempty"`
	DebugMode       *bool           `json:"debugMode,omitempty"`
	EnabledSites    map[string]bool `json:"enabledSites,omitempty"`
}

// DefaultSettings returns the settings used when nothing is persisted
func DefaultSettings() Settings {
	sites := make(map[string]bool)
	for _, site := range extractor.SupportedSites() {
		sites[site] = true
	}
	sites[OtherSite] = true
	return Settings{
		RetentionDays:   DefaultRetentionDays,
		TrackingEnabled: true,
		DebugMode:       false,
		EnabledSites:    sites,
	}
}

func (s Settings) apply(p SettingsPatch) Settings {
	if p.RetentionDays != nil {
		s.RetentionDays = *p.RetentionDays
	}
	if p.TrackingEnabled != nil {
		s.TrackingEnabled = *p.TrackingEnabled
	}
	if p.DebugMode != nil {
		s.DebugMode = *p.DebugMode
	}
	if p.EnabledSites != nil {
		sites := make(map[string]bool, len(p.EnabledSites))
		for k, v := range p.EnabledSites {
			sites[k] = v
		}
		s.EnabledSites = sites
	}
	return s
}

// SettingsStore owns the persisted settings record
type SettingsStore struct {
	kv  kvstore.Store
	mu  sync.Mutex
	log *logger.Logger
}

// NewSettingsStore creates a settings store over kv
func NewSettingsStore(kv kvstore.Store) *SettingsStore {
	return &SettingsStore{kv: kv, log: logger.ForSettings()}
}

// Get merges the persisted overrides onto the defaults
func (s *SettingsStore) Get(ctx context.Context) (Settings, error) {
	data, err := s.kv.Get(ctx, SettingsKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, perrors.NewPersistence("settings", "failed to read settings", err)
	}

	var patch SettingsPatch
	if err := json.Unmarshal(data, &patch); err != nil {
		return Settings{}, perrors.NewParsing("settings", "stored settings are not valid JSON", err)
	}
	return DefaultSettings().apply(patch), nil
}

// Update shallow-merges patch into the current settings and persists the result
func (s *SettingsStore) Update(ctx context.Context, patch SettingsPatch) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Get(ctx)
	if err != nil {
		return Settings{}, err
	}
	merged := current.apply(patch)

	data, err := json.Marshal(merged)
	if err != nil {
		return Settings{}, perrors.NewParsing("settings", "failed to encode settings", err)
	}
	if err := s.kv.Set(ctx, SettingsKey, data); err != nil {
		return Settings{}, perrors.NewPersistence("settings", "failed to write settings", err)
	}

	s.log.Info().
		Int("retentionDays", merged.RetentionDays).
		Bool("trackingEnabled", merged.TrackingEnabled).
		Bool("debugMode", merged.DebugMode).
		Msg("Settings updated")
	return merged, nil
}
