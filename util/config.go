package util

import (
	_ "embed"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/goware/urlx"
	"gopkg.in/yaml.v3"
)

const Name = "fedcal"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host               string
		SshPort            int    `yaml:"sshPort"`
		HttpPort           int    `yaml:"httpPort"`
		ApiUrl             string `yaml:"apiUrl"`
		ApiToken           string `yaml:"apiToken"`
		DebounceMs         int    `yaml:"debounceMs"`
		RefreshSchedule    string `yaml:"refreshSchedule"`
		RefreshLimit       int    `yaml:"refreshLimit"`
		RefreshMaxAgeHours int    `yaml:"refreshMaxAgeHours"`
		WithSsh            bool   `yaml:"withSsh"`
		WithWeb            bool   `yaml:"withWeb"`
	}
}

// Debounce is the resolver's input settle time.
func (c *AppConfig) Debounce() time.Duration {
	if c.Conf.DebounceMs <= 0 {
		return 400 * time.Millisecond
	}
	return time.Duration(c.Conf.DebounceMs) * time.Millisecond
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	configPath := ResolveFilePath(ConfigFileName)

	buf, err := os.ReadFile(configPath)
	if err != nil {
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	applyEnv(c)

	if c.Conf.ApiUrl, err = NormalizeApiUrl(c.Conf.ApiUrl); err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	return c, nil
}

func applyEnv(c *AppConfig) {
	if v := os.Getenv("FEDCAL_HOST"); v != "" {
		c.Conf.Host = v
	}
	if v := os.Getenv("FEDCAL_API_URL"); v != "" {
		c.Conf.ApiUrl = v
	}
	if v := os.Getenv("FEDCAL_API_TOKEN"); v != "" {
		c.Conf.ApiToken = v
	}
	if v := os.Getenv("FEDCAL_REFRESH_SCHEDULE"); v != "" {
		c.Conf.RefreshSchedule = v
	}

	envInt("FEDCAL_SSHPORT", &c.Conf.SshPort)
	envInt("FEDCAL_HTTPPORT", &c.Conf.HttpPort)
	envInt("FEDCAL_DEBOUNCE_MS", &c.Conf.DebounceMs)

	if v := os.Getenv("FEDCAL_WITH_SSH"); v != "" {
		c.Conf.WithSsh = v == "true"
	}
	if v := os.Getenv("FEDCAL_WITH_WEB"); v != "" {
		c.Conf.WithWeb = v == "true"
	}
}

func envInt(key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Ignoring %s: %v", key, err)
		return
	}
	*dst = n
}

// NormalizeApiUrl accepts bare hosts ("localhost:3000/api") and always
// returns a url with a scheme and a trailing slash.
func NormalizeApiUrl(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("apiUrl is empty")
	}
	u, err := urlx.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid apiUrl %q: %w", raw, err)
	}
	norm, err := urlx.Normalize(u)
	if err != nil {
		return "", fmt.Errorf("invalid apiUrl %q: %w", raw, err)
	}
	if norm[len(norm)-1] != '/' {
		norm += "/"
	}
	return norm, nil
}
