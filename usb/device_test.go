/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 */

package usb

import "testing"

func TestReformatSerial(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"AAAAAAAABBBBCCCCCCCCCCCC", "AAAAAAAA-BBBBCCCCCCCCCCCC"},
		{"short", "short"},
		{"", ""},
		{"123456789012345678901234567", "123456789012345678901234567"},
	}
	for _, c := range cases {
		if got := reformatSerial(c.in); got != c.want {
			t.Errorf("reformatSerial(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLocation(t *testing.T) {
	got := location(1, 7)
	want := uint32(1)<<16 | 7
	if got != want {
		t.Errorf("location(1,7) = %#x, want %#x", got, want)
	}
}

func TestDeviceZeroValueAfterTeardown(t *testing.T) {
	d := &Device{
		handle:          nil,
		serial:          "ignored-once-gone",
		productID:       0x1234,
		speedBitsPerSec: 480000000,
	}
	if got := d.Serial(); got != "" {
		t.Errorf("Serial() after teardown = %q, want \"\"", got)
	}
	if got := d.ProductID(); got != 0 {
		t.Errorf("ProductID() after teardown = %#x, want 0", got)
	}
	if got := d.Speed(); got != 0 {
		t.Errorf("Speed() after teardown = %d, want 0", got)
	}
}

func TestSpeedBitsPerSecond(t *testing.T) {
	cases := map[int]uint64{
		speedLow:       1500000,
		speedFull:      12000000,
		speedHigh:      480000000,
		speedSuper:     5000000000,
		speedSuperPlus: 10000000000,
		speedUnknown:   0,
	}
	for class, want := range cases {
		if got := speedBitsPerSecond(class); got != want {
			t.Errorf("speedBitsPerSecond(%d) = %d, want %d", class, got, want)
		}
	}
}
