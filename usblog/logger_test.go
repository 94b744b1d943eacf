/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 */

package usblog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelWarning)

	l.Debug("should not appear")
	l.Info("should not appear either")
	l.Warning("this one should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Errorf("level filtering failed, got: %q", out)
	}
	if !strings.Contains(out, "this one should appear") {
		t.Errorf("expected message missing, got: %q", out)
	}
	if !strings.Contains(out, "[WRN]") {
		t.Errorf("expected level tag [WRN], got: %q", out)
	}
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelError)
	l.Debug("hidden")
	l.SetLevel(LevelDebug)
	l.Debug("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("message logged before SetLevel raised verbosity: %q", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("message after SetLevel missing: %q", out)
	}
}

func TestFatalAlwaysLogsAndFormatsSafely(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelError)

	err := l.Fatal("disk %s full at %d%%", "/dev/sda1", 97)
	if err == nil {
		t.Fatal("Fatal() returned nil error")
	}
	if err.Error() != "disk /dev/sda1 full at 97%" {
		t.Errorf("Fatal() error = %q, unexpected", err.Error())
	}
	if !strings.Contains(buf.String(), "FATAL:") {
		t.Errorf("Fatal() did not log, got: %q", buf.String())
	}
}

func TestFatalDoesNotInterpretPercentInArgs(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, LevelError)

	// A message that, if fed back through another Printf-style call,
	// would misbehave because it contains literal %s verbs.
	err := l.Fatal("raw payload was %q", "100% full, %s missing")
	if err.Error() != `raw payload was "100% full, %s missing"` {
		t.Errorf("Fatal() error = %q, unexpected", err.Error())
	}
}

func TestLevelString(t *testing.T) {
	cases := map[Level]string{
		LevelError:   "ERR",
		LevelWarning: "WRN",
		LevelNotice:  "NTC",
		LevelInfo:    "INF",
		LevelDebug:   "DBG",
		LevelSpew:    "SPW",
		Level(99):    "???",
	}
	for level, want := range cases {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}
