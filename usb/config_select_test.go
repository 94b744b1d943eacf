/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 */

package usb

import "testing"

func TestMatchesMultiplexInterface(t *testing.T) {
	cases := []struct {
		name string
		in   ifaceDescriptor
		want bool
	}{
		{"exact triple", ifaceDescriptor{class: InterfaceClass, subClass: InterfaceSubClass, protocol: InterfaceProtocol}, true},
		{"class only", ifaceDescriptor{class: InterfaceClass}, true},
		{"subclass only", ifaceDescriptor{subClass: InterfaceSubClass}, true},
		{"protocol only", ifaceDescriptor{protocol: InterfaceProtocol}, true},
		{"no match", ifaceDescriptor{class: 1, subClass: 1, protocol: 1}, false},
	}
	for _, c := range cases {
		if got := matchesMultiplexInterface(c.in); got != c.want {
			t.Errorf("%s: matchesMultiplexInterface() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestPickEndpoints(t *testing.T) {
	out, in, ok := pickEndpoints([]uint8{0x01, 0x81})
	if !ok || out != 0x01 || in != 0x81 {
		t.Errorf("pickEndpoints([0x01,0x81]) = %#x,%#x,%v", out, in, ok)
	}

	out, in, ok = pickEndpoints([]uint8{0x82, 0x02})
	if !ok || out != 0x02 || in != 0x82 {
		t.Errorf("pickEndpoints([0x82,0x02]) = %#x,%#x,%v", out, in, ok)
	}

	if _, _, ok := pickEndpoints([]uint8{0x01}); ok {
		t.Errorf("pickEndpoints with one endpoint should fail")
	}
	if _, _, ok := pickEndpoints([]uint8{0x01, 0x02, 0x83}); ok {
		t.Errorf("pickEndpoints with three endpoints should fail")
	}
}
