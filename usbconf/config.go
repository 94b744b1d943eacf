/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Daemon configuration
 */

// Package usbconf loads the core's tunables from an .ini file, the
// same way the teacher persists per-device state: gopkg.in/ini.v1
// against a well-known section/key layout, with defaults that match
// the hardcoded constants from the original C daemon so an absent
// file changes nothing.
package usbconf

import (
	"os"
	"strconv"

	"gopkg.in/ini.v1"
)

// EnvDeviceMode is the environment variable that overrides the
// desired device mode, exactly as ENV_DEVICE_MODE does in the
// original implementation. It takes precedence over the config file.
const EnvDeviceMode = "USBMUXD_DEVICE_MODE"

// Config holds the tunables of the USB device-management core.
type Config struct {
	// DesiredMode is the mode the Mode Negotiator tries to switch
	// devices into. Valid range is [1,5]; default 1.
	DesiredMode int

	// PollIntervalMS is how often the polling discovery path
	// re-enumerates when hotplug is unavailable. Default 1000.
	PollIntervalMS int

	// RxLoops is how many parallel inbound bulk transfers the
	// initialization pipeline tries to keep in flight. Default 3.
	RxLoops int

	// LogLevel selects verbosity as a string understood by usblog
	// ("error", "warning", "notice", "info", "debug", "spew").
	LogLevel string
}

// Default returns the configuration the core uses when no file is
// present, matching the original daemon's compiled-in defaults.
func Default() Config {
	return Config{
		DesiredMode:    1,
		PollIntervalMS: 1000,
		RxLoops:        3,
		LogLevel:       "info",
	}
}

// Load reads path as an .ini file and overlays it on top of Default.
// A missing file is not an error; it just means the defaults apply.
// The [device]/desired-mode key is further overridden by the
// EnvDeviceMode environment variable, if set to a valid value.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			f, err := ini.Load(path)
			if err != nil {
				return cfg, err
			}
			applyFile(&cfg, f)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyFile(cfg *Config, f *ini.File) {
	if sec, _ := f.GetSection("device"); sec != nil {
		if key, _ := sec.GetKey("desired-mode"); key != nil {
			if v, err := key.Int(); err == nil && v >= 1 && v <= 5 {
				cfg.DesiredMode = v
			}
		}
	}

	if sec, _ := f.GetSection("discovery"); sec != nil {
		if key, _ := sec.GetKey("poll-interval-ms"); key != nil {
			if v, err := key.Int(); err == nil && v > 0 {
				cfg.PollIntervalMS = v
			}
		}
		if key, _ := sec.GetKey("rx-loops"); key != nil {
			if v, err := key.Int(); err == nil && v > 0 {
				cfg.RxLoops = v
			}
		}
	}

	if sec, _ := f.GetSection("logging"); sec != nil {
		if key, _ := sec.GetKey("level"); key != nil {
			cfg.LogLevel = key.String()
		}
	}
}

func applyEnv(cfg *Config) {
	if s := os.Getenv(EnvDeviceMode); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 1 && v <= 5 {
			cfg.DesiredMode = v
		}
	}
}

// Save writes cfg to path in the same .ini shape Load understands.
// Mirrors devstate.go's Save: build a fresh ini.File, fill sections
// and keys, write it out. Mainly useful for `-write-default-config`
// style tooling and for tests round-tripping a Config.
func Save(path string, cfg Config) error {
	f := ini.Empty()

	dev, err := f.NewSection("device")
	if err != nil {
		return err
	}
	dev.NewKey("desired-mode", strconv.Itoa(cfg.DesiredMode))

	disc, err := f.NewSection("discovery")
	if err != nil {
		return err
	}
	disc.NewKey("poll-interval-ms", strconv.Itoa(cfg.PollIntervalMS))
	disc.NewKey("rx-loops", strconv.Itoa(cfg.RxLoops))

	log, err := f.NewSection("logging")
	if err != nil {
		return err
	}
	log.NewKey("level", cfg.LogLevel)

	return f.SaveTo(path)
}
