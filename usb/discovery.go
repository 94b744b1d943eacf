/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Discovery & Hotplug Driver
 */

package usb

// isCandidateProduct reports whether productID falls in one of the
// Apple product ranges this core multiplexes, mirroring the PID
// checks inside usb_device_add.
func isCandidateProduct(productID uint16) bool {
	if productID == ProductT2Coprocessor {
		return true
	}
	if productID >= ProductSiliconRestoreLow && productID <= ProductSiliconRestoreMax {
		return true
	}
	if productID >= ProductRangeLow && productID <= ProductRangeMax {
		return true
	}
	return false
}

// addDevice is usb_device_add: given a freshly-enumerated libusb
// device, either re-assert the liveness of an existing record or
// build a new one and kick off mode negotiation plus initialization.
// Non-Apple and non-candidate-PID devices are ignored outright.
func (core *Core) addDevice(cdev cDevicePtr) {
	bus, addr := getBusAddress(cdev)

	desc, err := getDeviceDescriptor(cdev)
	if err != nil {
		return
	}
	if desc.vendorID != VendorApple || !isCandidateProduct(desc.productID) {
		return
	}

	if existing := core.reg.find(bus, addr); existing != nil {
		existing.mu.Lock()
		existing.alive = true
		existing.mu.Unlock()
		return
	}

	h, err := openDevice(cdev)
	if err != nil {
		if core.log != nil {
			core.log.Warning("device %d:%d: open failed: %v", bus, addr, err)
		}
		return
	}

	dev := &Device{
		bus:       bus,
		address:   addr,
		vendorID:  desc.vendorID,
		productID: desc.productID,
		handle:    h,
		cdev:      cdev,
		alive:     true,
		mode:      guessMode(cdev),
		rx:        newTransferPool(),
		tx:        newTransferPool(),
		core:      core,
	}
	core.reg.add(dev)

	if core.log != nil {
		core.log.Notice("device %d:%d: found, vid=%04x pid=%04x, guessed mode %d", bus, addr, desc.vendorID, desc.productID, dev.mode)
	}

	dev.negotiateMode(core.cfg.DesiredMode, func() {
		core.initialize(dev)
	})
}

// pollEnumerate is usb_discover's polling path: list every attached
// device, mark the whole registry dead first so anything no longer
// present gets reaped, then re-add/re-assert everything still there.
// A run of maxEnumerationFailures consecutive failures is fatal; any
// success resets the counter to zero, matching the original's
// devlist_failures bookkeeping exactly (not a monotonic count).
func (core *Core) pollEnumerate() error {
	devs, free, err := core.libusb.getDeviceList()
	if err != nil {
		core.pollFailures++
		if core.pollFailures >= maxEnumerationFailures {
			return ErrTooManyFailures
		}
		if core.log != nil {
			core.log.Warning("device enumeration failed (%d/%d): %v", core.pollFailures, maxEnumerationFailures, err)
		}
		return nil
	}
	defer free()

	core.pollFailures = 0
	core.reg.markAllDead()

	for _, d := range devs {
		core.addDevice(d)
	}

	core.reapDead()
	return nil
}

// Autodiscover gates both the polling enumeration loop and hotplug
// ARRIVED handling together, matching usb_autodiscover's two
// independently-stored but jointly-flipped booleans
// (device_polling/device_hotplug) in original_source/src/usb.c.
func (core *Core) Autodiscover(enable bool) {
	core.autodiscoverPolling = enable
	core.autodiscoverHotplug = enable
}

// dispatchHotplugEvents drains any pending hotplug notifications
// produced by goHotplugCallback during the last libusb_handle_events
// call and applies them.
func (core *Core) dispatchHotplugEvents() {
	for {
		select {
		case ev := <-core.hotplugEvents:
			core.handleHotplugEvent(ev)
		default:
			return
		}
	}
}

func (core *Core) handleHotplugEvent(ev hotplugEvent) {
	if ev.arrived {
		if !core.autodiscoverHotplug {
			return
		}
		devs, free, err := core.libusb.getDeviceList()
		if err != nil {
			return
		}
		defer free()
		for _, d := range devs {
			b, a := getBusAddress(d)
			if b == ev.bus && a == ev.address {
				core.addDevice(d)
				break
			}
		}
		return
	}

	if dev := core.reg.find(ev.bus, ev.address); dev != nil {
		dev.markDead()
	}
}

// reapDead runs the full teardown sequence on every device the last
// pass marked dead, unconditionally -- matching reap_dead_devices'
// unqualified usb_disconnect call for every device with alive==0 in
// original_source/src/usb.c. A dead device with transfers still in
// flight gets those transfers cancelled and a bounded wait for them
// to land, not skipped until they happen to drain on their own; this
// is the only place a Device is actually released, never from inside
// a callback, always from the pump's per-dispatch sweep, so nothing
// ever frees a device out from under a callback that still belongs
// to it.
func (core *Core) reapDead() {
	for _, dev := range core.reg.dead() {
		core.disconnect(dev)
	}
}
