/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 */

package usb

import "testing"

func TestClassifyConfig5Valeria(t *testing.T) {
	cfg := &configDescriptor{interfaces: []ifaceDescriptor{
		{class: InterfaceClass, subClass: InterfaceSubClass, protocol: InterfaceProtocol},
		{subClass: 42, protocol: 255},
	}}
	if got := classifyConfig5(cfg); got != ModeValeria {
		t.Errorf("classifyConfig5(valeria) = %d, want %d", got, ModeValeria)
	}
}

func TestClassifyConfig5CDCNCM(t *testing.T) {
	cfg := &configDescriptor{interfaces: []ifaceDescriptor{
		{class: InterfaceClass, subClass: InterfaceSubClass, protocol: InterfaceProtocol},
		{class: 2, subClass: 0x0d},
	}}
	if got := classifyConfig5(cfg); got != ModeCDCNCM {
		t.Errorf("classifyConfig5(cdc-ncm) = %d, want %d", got, ModeCDCNCM)
	}
}

func TestClassifyConfig5Undetermined(t *testing.T) {
	cfg := &configDescriptor{interfaces: []ifaceDescriptor{
		{class: 9, subClass: 9, protocol: 9},
	}}
	if got := classifyConfig5(cfg); got != ModeUndetermined {
		t.Errorf("classifyConfig5(none) = %d, want %d", got, ModeUndetermined)
	}
}

func TestClassifyConfig5MissingMultiplexInterface(t *testing.T) {
	// Valeria marker present but the multiplexing interface itself is
	// absent -- must not be classified as either mode.
	cfg := &configDescriptor{interfaces: []ifaceDescriptor{
		{subClass: 42, protocol: 255},
	}}
	if got := classifyConfig5(cfg); got != ModeUndetermined {
		t.Errorf("classifyConfig5(valeria without multiplex iface) = %d, want %d", got, ModeUndetermined)
	}
}
