/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 */

package usbconf

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DesiredMode != 1 || cfg.PollIntervalMS != 1000 || cfg.RxLoops != 3 || cfg.LogLevel != "info" {
		t.Errorf("Default() = %+v, unexpected", cfg)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("Load(missing) = %+v, want defaults", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usbmuxd-core.ini")
	want := Config{DesiredMode: 3, PollIntervalMS: 500, RxLoops: 5, LogLevel: "debug"}

	if err := Save(path, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != want {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestEnvOverridesDesiredMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usbmuxd-core.ini")
	if err := Save(path, Config{DesiredMode: 1, PollIntervalMS: 1000, RxLoops: 3, LogLevel: "info"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	os.Setenv(EnvDeviceMode, "4")
	defer os.Unsetenv(EnvDeviceMode)

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.DesiredMode != 4 {
		t.Errorf("DesiredMode = %d, want 4 (env override)", got.DesiredMode)
	}
}

func TestEnvIgnoresOutOfRange(t *testing.T) {
	os.Setenv(EnvDeviceMode, "99")
	defer os.Unsetenv(EnvDeviceMode)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DesiredMode != 1 {
		t.Errorf("DesiredMode = %d, want 1 (out-of-range env ignored)", cfg.DesiredMode)
	}
}
