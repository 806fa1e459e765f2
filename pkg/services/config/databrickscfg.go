package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/databricks/databricks-sdk-go/config"
	"gopkg.in/ini.v1"
)

// Registry reads Databricks connection profiles from a .databrickscfg file.
type Registry interface {
	GetProfiles(ctx context.Context) ([]string, error)
	GetConfig(ctx context.Context, profile string) (*config.Config, error)
	GetHTTPPath(ctx context.Context, profile string) (string, error)
}

type cfgRegistry struct {
	cfg *ini.File
}

func NewRegistry(path string) (Registry, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}
	return &cfgRegistry{cfg: cfg}, nil
}

// DefaultDatabricksConfigPath is ~/.databrickscfg, or $DATABRICKS_CONFIG_FILE when set.
func DefaultDatabricksConfigPath() string {
	if path := os.Getenv("DATABRICKS_CONFIG_FILE"); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".databrickscfg"
	}
	return filepath.Join(home, ".databrickscfg")
}

func (cr *cfgRegistry) GetProfiles(_ context.Context) ([]string, error) {
	var profiles []string
	for _, section := range cr.cfg.Sections() {
		if len(section.Keys()) > 0 {
			profiles = append(profiles, section.Name())
		}
	}
	return profiles, nil
}

func (cr *cfgRegistry) GetConfig(_ context.Context, profile string) (*config.Config, error) {
	section, err := cr.cfg.GetSection(profile)
	if err != nil {
		return nil, fmt.Errorf("profile %s not found", profile)
	}

	host := section.Key("host").String()
	token := section.Key("token").String()

	return &config.Config{
		Profile: profile,
		Host:    host,
		Token:   token,
	}, nil
}

func (cr *cfgRegistry) GetHTTPPath(_ context.Context, profile string) (string, error) {
	section, err := cr.cfg.GetSection(profile)
	if err != nil {
		return "", fmt.Errorf("profile %s not found", profile)
	}
	return section.Key("http_path").String(), nil
}
