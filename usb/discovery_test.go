/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 */

package usb

import "testing"

func TestIsCandidateProduct(t *testing.T) {
	cases := []struct {
		pid  uint16
		want bool
	}{
		{ProductT2Coprocessor, true},
		{ProductSiliconRestoreLow, true},
		{ProductSiliconRestoreMax, true},
		{ProductSiliconRestoreLow - 1, false},
		{ProductSiliconRestoreMax + 1, false},
		{ProductRangeLow, true},
		{ProductRangeMax, true},
		{ProductRangeLow - 1, false},
		{ProductRangeMax + 1, false},
		{0x0001, false},
	}
	for _, c := range cases {
		if got := isCandidateProduct(c.pid); got != c.want {
			t.Errorf("isCandidateProduct(%#04x) = %v, want %v", c.pid, got, c.want)
		}
	}
}

func TestAutodiscoverGatesBothFlags(t *testing.T) {
	core := &Core{}
	core.Autodiscover(true)
	if !core.autodiscoverPolling || !core.autodiscoverHotplug {
		t.Errorf("Autodiscover(true) did not set both flags")
	}
	core.Autodiscover(false)
	if core.autodiscoverPolling || core.autodiscoverHotplug {
		t.Errorf("Autodiscover(false) did not clear both flags")
	}
}
