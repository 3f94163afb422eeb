// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads mfmode settings from an optional YAML file,
// MFMODE_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Thermoquad/mfmode/pkg/console"
	"github.com/Thermoquad/mfmode/pkg/image"
	"github.com/Thermoquad/mfmode/pkg/logging"
)

// EnvPrefix prefixes environment overrides, e.g. MFMODE_TRANSPORT_PORT.
const EnvPrefix = "MFMODE"

// Config is the decoded configuration.
type Config struct {
	Transport   TransportConfig   `mapstructure:"transport"`
	Identity    IdentityConfig    `mapstructure:"identity"`
	Image       ImageConfig       `mapstructure:"image"`
	Console     ConsoleConfig     `mapstructure:"console"`
	FactoryTest FactoryTestConfig `mapstructure:"factory_test"`
	Bluetooth   BluetoothConfig   `mapstructure:"bluetooth"`
	WLAN        WLANConfig        `mapstructure:"wlan"`
	Store       StoreConfig       `mapstructure:"store"`
	Host        HostConfig        `mapstructure:"host"`
	MQTT        MQTTConfig        `mapstructure:"mqtt"`
	Log         logging.Config    `mapstructure:"log"`
}

// TransportConfig selects the byte link. URL wins over Port; with neither
// the local terminal is used.
type TransportConfig struct {
	Port        string `mapstructure:"port"`
	Baud        int    `mapstructure:"baud"`
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	NoSSLVerify bool   `mapstructure:"no_ssl_verify"`
}

type IdentityConfig struct {
	SerialNumber      string `mapstructure:"serial_number"`
	BootloaderVersion string `mapstructure:"bootloader_version"`
	LibraryVersion    string `mapstructure:"library_version"`
	AppVersion        string `mapstructure:"app_version"`
	DriverVersion     string `mapstructure:"driver_version"`
}

// ImageConfig points at the flash dump holding the application image.
type ImageConfig struct {
	Path       string            `mapstructure:"path"`
	Region     string            `mapstructure:"region"`
	Window     int               `mapstructure:"window"`
	Partitions []image.Partition `mapstructure:"partitions"`
}

type ConsoleConfig struct {
	Prompt       string        `mapstructure:"prompt"`
	LineCapacity int           `mapstructure:"line_capacity"`
	ByteTimeout  time.Duration `mapstructure:"byte_timeout"`
}

// FactoryTestConfig is the boot-time gate. Enabled forces the factory
// test on; otherwise the presence of MarkerFile decides.
type FactoryTestConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MarkerFile      string        `mapstructure:"marker_file"`
	SentinelTimeout time.Duration `mapstructure:"sentinel_timeout"`
}

type BluetoothConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Address          string        `mapstructure:"address"`
	ScanDuration     time.Duration `mapstructure:"scan_duration"`
	FilterDuplicates bool          `mapstructure:"filter_duplicates"`
}

type WLANConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Interface string `mapstructure:"interface"`
	Password  string `mapstructure:"password"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// HostConfig drives the host command on the manufacturing line.
type HostConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Report      string        `mapstructure:"report"`
}

// MQTTConfig publishes host reports when Broker is set, e.g.
// tcp://broker:1883.
type MQTTConfig struct {
	Broker   string        `mapstructure:"broker"`
	Topic    string        `mapstructure:"topic"`
	ClientID string        `mapstructure:"client_id"`
	QoS      int           `mapstructure:"qos"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// New returns a viper instance with defaults and environment overrides set.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// BindFlags binds command-line flags to configuration keys. Flags missing
// from fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for flag, key := range keys {
		f := fs.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Load reads path, or mfmode.yaml from the working directory or
// /etc/mfmode when path is empty, and decodes the merged settings. A
// missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("mfmode")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/mfmode")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate rejects values the components cannot run with.
func (c *Config) Validate() error {
	if c.Transport.Baud <= 0 {
		return fmt.Errorf("invalid baud rate: %d", c.Transport.Baud)
	}
	if c.Console.LineCapacity <= 0 {
		return fmt.Errorf("invalid console line capacity: %d", c.Console.LineCapacity)
	}
	if c.Image.Window <= 0 {
		return fmt.Errorf("invalid image window: %d", c.Image.Window)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid mqtt qos: %d (must be 0/1/2)", c.MQTT.QoS)
	}
	for _, p := range c.Image.Partitions {
		if p.Name == "" {
			return errors.New("image partition without a name")
		}
		if p.Offset < 0 || p.Length < 0 {
			return fmt.Errorf("image partition %s: negative offset or length", p.Name)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport.port", "")
	v.SetDefault("transport.baud", 115200)
	v.SetDefault("transport.url", "")
	v.SetDefault("transport.username", "")
	v.SetDefault("transport.password", "")
	v.SetDefault("transport.no_ssl_verify", false)

	v.SetDefault("identity.serial_number", "")
	v.SetDefault("identity.bootloader_version", "unknown")
	v.SetDefault("identity.library_version", "")
	v.SetDefault("identity.app_version", "unknown")
	v.SetDefault("identity.driver_version", "unknown")

	v.SetDefault("image.path", "")
	v.SetDefault("image.region", "application")
	v.SetDefault("image.window", image.DefaultWindowSize)

	v.SetDefault("console.prompt", console.DefaultPrompt)
	v.SetDefault("console.line_capacity", console.DefaultLineCapacity)
	v.SetDefault("console.byte_timeout", console.DefaultByteTimeout)

	v.SetDefault("factory_test.enabled", false)
	v.SetDefault("factory_test.marker_file", "/etc/mfmode/factory-test")
	v.SetDefault("factory_test.sentinel_timeout", 100*time.Millisecond)

	v.SetDefault("bluetooth.enabled", false)
	v.SetDefault("bluetooth.address", "")
	v.SetDefault("bluetooth.scan_duration", 2*time.Second)
	v.SetDefault("bluetooth.filter_duplicates", true)

	v.SetDefault("wlan.enabled", false)
	v.SetDefault("wlan.interface", "wlan0")
	v.SetDefault("wlan.password", "")

	v.SetDefault("store.path", "/var/lib/mfmode/config.cbor")

	v.SetDefault("host.idle_timeout", 5*time.Second)
	v.SetDefault("host.timeout", 60*time.Second)
	v.SetDefault("host.report", "")

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "mfmode/reports")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.timeout", 10*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "/var/log/mfmode/mfmode.log")
	v.SetDefault("log.file.max_size_mb", 10)
	v.SetDefault("log.file.max_age_days", 30)
	v.SetDefault("log.file.max_backups", 3)
	v.SetDefault("log.file.compress", true)
}
