/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Mode Negotiator
 */

package usb

// guessMode infers a device's multiplexing mode purely from its
// configuration count and, for the ambiguous 5-configuration case,
// from configuration 5's interface classes -- the exact algorithm
// guess_mode implements in original_source/src/usb.c. It never
// touches the device; it only reads descriptors already fetched
// during discovery.
func guessMode(cdev cDevicePtr) int {
	n := numConfigurations(cdev)

	switch {
	case n == 1:
		return ModeCDCNCMDirect
	case n >= 2 && n <= 4:
		return ModeInitial
	case n == 6:
		return ModeUSBEthCDCNCM
	case n == 5:
		return guessModeFromConfig5(cdev)
	default:
		// Any other count, including 0 (malformed descriptor), is
		// left undetermined -- matches usb.c's fallthrough.
		return ModeUndetermined
	}
}

func guessModeFromConfig5(cdev cDevicePtr) int {
	cfg, err := getConfigDescriptorByValue(cdev, 5)
	if err != nil {
		return ModeUndetermined
	}
	return classifyConfig5(cfg)
}

// classifyConfig5 is the interface-inspection half of guessMode,
// pulled apart from descriptor fetching so it can be exercised
// without a live libusb device.
func classifyConfig5(cfg *configDescriptor) int {
	var hasMultiplex, hasValeria, hasCDCNCM bool
	for _, iface := range cfg.interfaces {
		if iface.class == InterfaceClass && iface.subClass == InterfaceSubClass && iface.protocol == InterfaceProtocol {
			hasMultiplex = true
		}
		if iface.subClass == 42 && iface.protocol == 255 {
			hasValeria = true
		}
		if iface.class == 2 && iface.subClass == 0x0d {
			hasCDCNCM = true
		}
	}

	switch {
	case hasValeria && hasMultiplex:
		return ModeValeria
	case hasCDCNCM && hasMultiplex:
		return ModeCDCNCM
	default:
		return ModeUndetermined
	}
}

// negotiateMode runs GetMode, decides whether a switch is worthwhile,
// optionally issues SetMode, and either way hands off to the
// initialization pipeline in whatever mode the device ends up in.
// Mirrors get_mode_cb/switch_mode_cb: any GetMode failure, SetMode
// failure, or nonzero SetMode response byte is swallowed and
// initialization proceeds in the device's current mode rather than
// surfacing an error -- mode switching is strictly best-effort.
func (dev *Device) negotiateMode(desiredMode int, onReady func()) {
	dev.mu.Lock()
	h := dev.handle
	dev.mu.Unlock()
	if h == nil {
		return
	}

	t := newControlTransfer(dev, vendorRequestType, vendorSpecificGetMode, 0, 0, 4)
	err := t.submit(h, 0, uint(ControlTimeout.Milliseconds()), func(t *transfer) {
		dev.tx.remove(t)
		defer t.release()

		if t.status() != transferCompleted {
			onReady()
			return
		}

		// The response is 3:3:3:0 for initial mode, 5:3:3:0 otherwise.
		data := t.controlData()
		if len(data) >= 4 && dev.core != nil && dev.core.log != nil {
			dev.core.log.Debug("device %d:%d GET_MODE -> %d:%d:%d:%d", dev.bus, dev.address, data[0], data[1], data[2], data[3])
		}

		// dev.mode holds guessMode's descriptor-based guess from addDevice.
		guess := dev.mode
		shouldSwitch := desiredMode >= ModeInitial && desiredMode <= ModeCDCNCMDirect &&
			guess > 0 && guess != desiredMode

		if !shouldSwitch {
			onReady()
			return
		}

		dev.switchMode(desiredMode, func() {
			dev.mode = desiredMode
			onReady()
		}, onReady)
	})
	if err != nil {
		onReady()
		return
	}
	dev.tx.add(t)
}

// switchMode issues SET_MODE and waits for the one-byte response.
// onOK runs when the device accepts the switch (response byte 0);
// onFail runs for any transport failure or nonzero response byte.
func (dev *Device) switchMode(mode int, onOK, onFail func()) {
	dev.mu.Lock()
	h := dev.handle
	dev.mu.Unlock()
	if h == nil {
		onFail()
		return
	}

	t := newControlTransfer(dev, vendorRequestType, vendorSpecificSetMode, uint16(mode), 0, 1)
	err := t.submit(h, 0, uint(ControlTimeout.Milliseconds()), func(t *transfer) {
		dev.tx.remove(t)
		defer t.release()

		if t.status() != transferCompleted {
			onFail()
			return
		}
		data := t.controlData()
		if len(data) >= 1 && data[0] == 0 {
			onOK()
			return
		}
		onFail()
	})
	if err != nil {
		onFail()
		return
	}
	dev.tx.add(t)
}

// vendorRequestType is the bmRequestType for Apple's vendor-specific
// GET_MODE/SET_MODE requests: vendor, device-directed, IN or OUT
// depending on the request -- both requests here read back a status
// byte, so both use the device-to-host vendor request type.
const vendorRequestType = 0xc0
