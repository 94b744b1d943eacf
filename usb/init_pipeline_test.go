/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 */

package usb

import "testing"

func utf16leString(s string) []byte {
	// Builds a GET_DESCRIPTOR(string) response: length byte, type
	// byte, then one UTF-16LE code unit per ASCII rune.
	buf := make([]byte, 2+len(s)*2)
	buf[0] = byte(len(buf))
	buf[1] = descTypeString
	for i, r := range s {
		buf[2+i*2] = byte(r)
		buf[2+i*2+1] = 0
	}
	return buf
}

func TestDecodeUSBString(t *testing.T) {
	got := decodeUSBString(utf16leString("ABCDEF0123456789abcdef01"))
	want := "ABCDEF0123456789abcdef01"
	if got != want {
		t.Errorf("decodeUSBString() = %q, want %q", got, want)
	}
}

func TestDecodeUSBStringNonASCII(t *testing.T) {
	buf := []byte{2 + 2, descTypeString, 0x20, 0x20} // code unit 0x2020, outside ASCII
	got := decodeUSBString(buf)
	if got != "?" {
		t.Errorf("decodeUSBString(non-ascii) = %q, want %q", got, "?")
	}
}

func TestDecodeUSBStringTooShort(t *testing.T) {
	if got := decodeUSBString([]byte{1}); got != "" {
		t.Errorf("decodeUSBString(short) = %q, want \"\"", got)
	}
}
