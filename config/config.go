// Package config loads the launchpad wallet configuration from an optional
// file and LAUNCHPAD_-prefixed environment variables. Environment variables
// take precedence over file values.
//
// Example .env file:
//
//	NETWORK=testnet
//	CONTRACT_ID=CDHPDLT7KVICFAGYUO4ICTC5TGGR2XN5ZYT56TWZMNM6ATFVKXKU57HI
//	SIGN_TIMEOUT=90s
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
	"github.com/marwen-abid/launchpad-wallet-go/errors"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "LAUNCHPAD"

// Configuration keys.
const (
	KeyNetwork          = "network"
	KeyHorizonURL       = "horizon_url"
	KeyRPCURL           = "rpc_url"
	KeyContractID       = "contract_id"
	KeySessionPath      = "session_path"
	KeySignTimeout      = "sign_timeout"
	KeyLogLevel         = "log_level"
	KeySimulationSource = "simulation_source"
	KeyBaseFee          = "base_fee"

	// KeySecret is read from the environment only (LAUNCHPAD_SECRET); a
	// config file carrying it is rejected.
	KeySecret = "secret"
)

const (
	defaultContractID  = "CDHPDLT7KVICFAGYUO4ICTC5TGGR2XN5ZYT56TWZMNM6ATFVKXKU57HI"
	defaultSignTimeout = 120 * time.Second
	defaultBaseFee     = 100
)

type endpoints struct {
	horizon string
	rpc     string
}

var networkEndpoints = map[string]endpoints{
	launchpad.Testnet.Name: {horizon: "https://horizon-testnet.stellar.org", rpc: "https://soroban-testnet.stellar.org"},
	launchpad.Mainnet.Name: {horizon: "https://horizon.stellar.org", rpc: "https://soroban-rpc.stellar.org"},
}

// Config is the resolved configuration.
type Config struct {
	Network          launchpad.Network
	HorizonURL       string
	RPCURL           string
	ContractID       string
	SessionPath      string
	SignTimeout      time.Duration
	LogLevel         logrus.Level
	SimulationSource string
	BaseFee          int64

	// Secret is the signing key for headless use. Empty unless
	// LAUNCHPAD_SECRET is set.
	Secret string
}

// Load reads path (yaml, json, toml or .env; empty for none) and the
// environment, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyNetwork, "testnet")
	v.SetDefault(KeyContractID, defaultContractID)
	v.SetDefault(KeySessionPath, defaultSessionPath())
	v.SetDefault(KeySignTimeout, defaultSignTimeout)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyBaseFee, defaultBaseFee)

	if path != "" {
		v.SetConfigFile(path)
		if filepath.Base(path) == ".env" || filepath.Ext(path) == ".env" {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewCoreError(errors.CONFIG_INVALID, fmt.Sprintf("failed to read config file %s", path), err)
		}
		if v.InConfig(KeySecret) {
			return nil, invalid(KeySecret, "secret must not be stored in a config file", nil)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	network, ok := launchpad.NetworkByName(v.GetString(KeyNetwork))
	if !ok {
		return nil, invalid(KeyNetwork, fmt.Sprintf("unknown network %q", v.GetString(KeyNetwork)), nil)
	}

	level, err := logrus.ParseLevel(v.GetString(KeyLogLevel))
	if err != nil {
		return nil, invalid(KeyLogLevel, "invalid log level", err)
	}

	cfg := &Config{
		Network:          network,
		HorizonURL:       v.GetString(KeyHorizonURL),
		RPCURL:           v.GetString(KeyRPCURL),
		ContractID:       v.GetString(KeyContractID),
		SessionPath:      v.GetString(KeySessionPath),
		SignTimeout:      v.GetDuration(KeySignTimeout),
		LogLevel:         level,
		SimulationSource: v.GetString(KeySimulationSource),
		BaseFee:          v.GetInt64(KeyBaseFee),
		Secret:           v.GetString(KeySecret),
	}

	defaults := networkEndpoints[network.Name]
	if cfg.HorizonURL == "" {
		cfg.HorizonURL = defaults.horizon
	}
	if cfg.RPCURL == "" {
		cfg.RPCURL = defaults.rpc
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting as CONFIG_INVALID.
func (c *Config) Validate() error {
	if _, ok := networkEndpoints[c.Network.Name]; !ok || c.Network.Passphrase == "" {
		return invalid(KeyNetwork, "network is not set", nil)
	}
	if err := validateURL(c.HorizonURL); err != nil {
		return invalid(KeyHorizonURL, "invalid horizon url", err)
	}
	if err := validateURL(c.RPCURL); err != nil {
		return invalid(KeyRPCURL, "invalid rpc url", err)
	}
	if _, err := strkey.Decode(strkey.VersionByteContract, c.ContractID); err != nil {
		return invalid(KeyContractID, fmt.Sprintf("invalid contract id %q", c.ContractID), err)
	}
	if c.SessionPath == "" {
		return invalid(KeySessionPath, "session path is required", nil)
	}
	if c.SignTimeout <= 0 {
		return invalid(KeySignTimeout, "sign timeout must be positive", nil)
	}
	if c.SimulationSource != "" {
		if _, err := keypair.ParseAddress(c.SimulationSource); err != nil {
			return invalid(KeySimulationSource, "invalid simulation source", err)
		}
	}
	if c.Secret != "" {
		if _, err := keypair.ParseFull(c.Secret); err != nil {
			return invalid(KeySecret, "invalid secret key", nil)
		}
	}
	if c.BaseFee < 100 {
		return invalid(KeyBaseFee, "base fee must be at least 100 stroops", nil)
	}
	return nil
}

// NewLogger returns a logger at the configured level.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".launchpad-session.json"
	}
	return filepath.Join(dir, "launchpad", "session.json")
}

func invalid(key, message string, cause error) error {
	return errors.NewCoreError(errors.CONFIG_INVALID, message, cause).With("key", key)
}
