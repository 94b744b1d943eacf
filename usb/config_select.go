/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Configuration Selector
 */

package usb

// selectConfiguration walks configuration values from bNumConfigurations
// down to 1, looking at every interface's altsetting 0 for a
// class/subclass/protocol match against the multiplexing triple. The
// match is an OR across the three fields, not an AND -- deliberately
// broad, preserved as-is from set_valid_configuration (see
// SPEC_FULL.md's Open Questions: narrowing this is tempting but not
// what the original does, and nothing here depends on it being
// narrower). A value with no matching configuration (gaps are
// possible; values aren't guaranteed contiguous) is skipped exactly
// as set_valid_configuration skips it, never treated as fatal.
//
// The first matching interface ends the scan, unless applying its
// configuration fails, in which case the scan moves on to the next
// candidate. If its parent configuration isn't already active, every
// interface of that
// configuration gets a chance to have its kernel driver detached
// first -- a kernel driver still holding an interface of the target
// configuration is exactly what makes libusb_set_configuration fail,
// so the detach has to happen before the switch, not after -- and
// only then is the configuration applied. Detach failures are logged
// but not fatal, matching set_valid_configuration's own handling.
func selectConfiguration(h cHandlePtr, cdev cDevicePtr, warn func(format string, args ...interface{})) (ifaceNum int, epOut, epIn uint8, err error) {
	n := numConfigurations(cdev)

	for value := n; value >= 1; value-- {
		cfg, cerr := getConfigDescriptorByValue(cdev, uint8(value))
		if cerr != nil {
			continue
		}

		for _, iface := range cfg.interfaces {
			if !matchesMultiplexInterface(iface) {
				continue
			}
			out, in, ok := pickEndpoints(iface.endpoints)
			if !ok {
				continue
			}

			cur, cerr := getConfiguration(h)
			if cerr != nil || cur != int(cfg.value) {
				for _, other := range cfg.interfaces {
					if !kernelDriverActive(h, other.number) {
						continue
					}
					if derr := detachKernelDriver(h, other.number); derr != nil && warn != nil {
						warn("could not detach kernel driver from interface %d: %v", other.number, derr)
					}
				}
				if serr := setConfiguration(h, int(cfg.value)); serr != nil {
					continue
				}
			}

			return iface.number, out, in, nil
		}
	}

	return 0, 0, 0, ErrNoInterface
}

func matchesMultiplexInterface(iface ifaceDescriptor) bool {
	return iface.class == InterfaceClass ||
		iface.subClass == InterfaceSubClass ||
		iface.protocol == InterfaceProtocol
}

// pickEndpoints requires exactly two endpoints, identifying OUT and
// IN by the direction bit (0x80) regardless of which one appears
// first in the descriptor.
func pickEndpoints(eps []uint8) (out, in uint8, ok bool) {
	if len(eps) != 2 {
		return 0, 0, false
	}
	for _, ep := range eps {
		if ep&0x80 != 0 {
			in = ep
		} else {
			out = ep
		}
	}
	if out == 0 || in == 0 {
		return 0, 0, false
	}
	return out, in, true
}
