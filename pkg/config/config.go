package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloudseal/secallow/pkg/ports"
	"github.com/rs/zerolog/log"
	"gopkg.in/ini.v1"
)

const (
	DefaultStunServer = "stun.l.google.com"
	DefaultStunPort   = 19302
	DefaultBackend    = "cli"
	DefaultOSCommand  = "openstack"
)

// Files returns the configuration file search path, most specific last.
func Files(name string) []string {
	return []string{
		fmt.Sprintf("/etc/%s/%s.conf", name, name),
		filepath.Join(os.Getenv("HOME"), fmt.Sprintf(".%s.conf", name)),
	}
}

// LoadConfig reads the first usable configuration file and merges it over
// built-in defaults. A missing or empty file is not an error; the tool is
// fully operable from flags alone.
func LoadConfig(configFiles []string) (Settings, error) {
	var validConfigFile string

	for _, configFile := range configFiles {
		fileInfo, statErr := os.Stat(configFile)
		if statErr != nil {
			continue
		}
		if fileInfo.Size() == 0 {
			log.Debug().Msgf("Config file %s is empty, skipping...", configFile)
			continue
		}

		log.Debug().Msgf("Using config file %s.", configFile)
		validConfigFile = configFile
		break
	}

	settings := defaultSettings()
	if validConfigFile == "" {
		return settings, nil
	}

	iniData, err := ini.Load(validConfigFile)
	if err != nil {
		return settings, fmt.Errorf("failed to load config file %s: %w", validConfigFile, err)
	}

	var config Config
	if err := iniData.MapTo(&config); err != nil {
		return settings, fmt.Errorf("failed to parse config file %s: %w", validConfigFile, err)
	}

	return validateConfig(config, settings)
}

func defaultSettings() Settings {
	return Settings{
		Ports:      append([]int(nil), ports.Default...),
		AllICMP:    true,
		StunServer: DefaultStunServer,
		StunPort:   DefaultStunPort,
		Backend:    DefaultBackend,
		OSCommand:  DefaultOSCommand,
	}
}

func validateConfig(config Config, settings Settings) (Settings, error) {
	if config.Rules.SecurityGroup != "" {
		settings.SecurityGroup = config.Rules.SecurityGroup
	}
	if config.Rules.Ports != "" {
		parsed, err := ports.Parse([]string{config.Rules.Ports})
		if err != nil {
			return settings, fmt.Errorf("invalid ports in config: %w", err)
		}
		settings.Ports = parsed
	}
	if config.Rules.AllICMP != nil {
		settings.AllICMP = *config.Rules.AllICMP
	}

	if config.Stun.Server != "" {
		settings.StunServer = config.Stun.Server
	}
	if config.Stun.Port != 0 {
		if config.Stun.Port < 1 || config.Stun.Port > 65535 {
			return settings, fmt.Errorf("invalid stun port %d in config", config.Stun.Port)
		}
		settings.StunPort = config.Stun.Port
	}

	settings.LogFile = config.Log.File
	settings.KeepHistory = config.Log.KeepHistory

	if config.Provider.Backend != "" {
		switch config.Provider.Backend {
		case "cli", "neutron", "aws":
			settings.Backend = config.Provider.Backend
		default:
			return settings, fmt.Errorf("unknown provider backend %q in config", config.Provider.Backend)
		}
	}
	if config.Provider.Command != "" {
		settings.OSCommand = config.Provider.Command
	}

	return settings, nil
}
