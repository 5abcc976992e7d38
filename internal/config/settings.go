package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vbonduro/shelfshot/internal/domain"
)

const DefaultMarketplace = "EBAY_US"

func DefaultSettings() domain.Settings {
	return domain.Settings{Marketplace: DefaultMarketplace}
}

// LoadSettings reads the marketplace settings file. A missing file yields
// the defaults.
func LoadSettings(path string) (domain.Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return DefaultSettings(), fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	if s.Marketplace == "" {
		s.Marketplace = DefaultMarketplace
	}
	return s, nil
}

// SaveSettings writes s to path through a temp file and rename.
func SaveSettings(path string, s domain.Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace settings: %w", err)
	}
	return nil
}
