/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * cgo bindings to libusb-1.0
 *
 * This file plays the role of usbio_libusb.go and libusb.go in the
 * teacher, extended from those files' synchronous Send/Recv calls to
 * the asynchronous submit/callback API libusb also exposes -- the
 * same API original_source/src/usb.c is written against. The async
 * path is the only one that can honor the bounded-cancellation
 * invariant the Transfer Pool and disconnect sequence depend on.
 */

package usb

/*
#cgo pkg-config: libusb-1.0
#include <libusb.h>
#include <stdlib.h>
#include <string.h>

extern void goTransferCallback(struct libusb_transfer *transfer);
extern void goHotplugCallback(libusb_context *ctx, libusb_device *device, int event, void *user_data);

static void usbmuxd_transfer_trampoline(struct libusb_transfer *transfer) {
	goTransferCallback(transfer);
}

static int usbmuxd_hotplug_trampoline(libusb_context *ctx, libusb_device *device,
                                       libusb_hotplug_event event, void *user_data) {
	goHotplugCallback(ctx, device, (int)event, user_data);
	return 0;
}

static libusb_transfer_cb_fn usbmuxd_transfer_cb(void) {
	return usbmuxd_transfer_trampoline;
}

static libusb_hotplug_callback_fn usbmuxd_hotplug_cb(void) {
	return usbmuxd_hotplug_trampoline;
}
*/
import "C"

import (
	"fmt"
	"runtime"
	"runtime/cgo"
	"unsafe"
)

type cDevicePtr = *C.libusb_device
type cHandlePtr = *C.libusb_device_handle
type cTransferPtr = *C.struct_libusb_transfer

// libusb speed classes, mirrored from enum libusb_speed.
const (
	speedUnknown   = C.LIBUSB_SPEED_UNKNOWN
	speedLow       = C.LIBUSB_SPEED_LOW
	speedFull      = C.LIBUSB_SPEED_FULL
	speedHigh      = C.LIBUSB_SPEED_HIGH
	speedSuper     = C.LIBUSB_SPEED_SUPER
	speedSuperPlus = C.LIBUSB_SPEED_SUPER_PLUS
)

// libusbContext is the process-wide libusb context. The core opens
// exactly one, matching usb_init's single static usb_ctx.
type libusbContext struct {
	ctx *C.libusb_context
}

func libusbNewContext() (*libusbContext, error) {
	var ctx *C.libusb_context
	if rc := C.libusb_init(&ctx); rc != 0 {
		return nil, newError("libusb_init", int(rc))
	}
	return &libusbContext{ctx: ctx}, nil
}

func (c *libusbContext) close() {
	if c.ctx != nil {
		C.libusb_exit(c.ctx)
		c.ctx = nil
	}
}

// deviceDescriptor is a Go-native copy of struct libusb_device_descriptor,
// safe to hold onto after the originating libusb_device has been freed.
type deviceDescriptor struct {
	vendorID, productID uint16
	bNumConfigurations  uint8
	iSerialNumber        uint8
}

func (c *libusbContext) getDeviceList() ([]cDevicePtr, func(), error) {
	var list **C.libusb_device
	n := C.libusb_get_device_list(c.ctx, &list)
	if n < 0 {
		return nil, func() {}, newError("libusb_get_device_list", int(n))
	}
	devs := make([]cDevicePtr, int(n))
	base := unsafe.Slice(list, int(n))
	for i, d := range base {
		devs[i] = d
	}
	free := func() { C.libusb_free_device_list(list, 1) }
	return devs, free, nil
}

func getBusAddress(dev cDevicePtr) (uint8, uint8) {
	return uint8(C.libusb_get_bus_number(dev)), uint8(C.libusb_get_device_address(dev))
}

func getDeviceDescriptor(dev cDevicePtr) (deviceDescriptor, error) {
	var cd C.struct_libusb_device_descriptor
	if rc := C.libusb_get_device_descriptor(dev, &cd); rc != 0 {
		return deviceDescriptor{}, newError("libusb_get_device_descriptor", int(rc))
	}
	return deviceDescriptor{
		vendorID:           uint16(cd.idVendor),
		productID:          uint16(cd.idProduct),
		bNumConfigurations: uint8(cd.bNumConfigurations),
		iSerialNumber:      uint8(cd.iSerialNumber),
	}, nil
}

// ifaceDescriptor is a Go-native copy of one interface altsetting's
// relevant fields plus its endpoint addresses.
type ifaceDescriptor struct {
	number                      int
	class, subClass, protocol   uint8
	endpoints                   []uint8
}

// configDescriptor is a Go-native copy of one configuration's
// bConfigurationValue and its interface list at altsetting 0.
type configDescriptor struct {
	value      uint8
	interfaces []ifaceDescriptor
}

// getConfigDescriptorByValue looks a configuration up by its
// bConfigurationValue, not by its position in the device's
// configuration list -- the two coincide for most devices but are not
// guaranteed to, and guess_mode/set_valid_configuration in
// original_source/src/usb.c both key off the value
// (libusb_get_config_descriptor_by_value), never the index.
func getConfigDescriptorByValue(dev cDevicePtr, value uint8) (*configDescriptor, error) {
	var cd *C.struct_libusb_config_descriptor
	if rc := C.libusb_get_config_descriptor_by_value(dev, C.uint8_t(value), &cd); rc != 0 {
		return nil, newError("libusb_get_config_descriptor_by_value", int(rc))
	}
	defer C.libusb_free_config_descriptor(cd)

	out := &configDescriptor{value: uint8(cd.bConfigurationValue)}
	ifaces := unsafe.Slice(cd.interface_, int(cd.bNumInterfaces))
	for _, iface := range ifaces {
		if iface.num_altsetting == 0 {
			continue
		}
		alts := unsafe.Slice(iface.altsetting, int(iface.num_altsetting))
		alt := alts[0]
		fd := ifaceDescriptor{
			number:    int(alt.bInterfaceNumber),
			class:     uint8(alt.bInterfaceClass),
			subClass:  uint8(alt.bInterfaceSubClass),
			protocol:  uint8(alt.bInterfaceProtocol),
		}
		eps := unsafe.Slice(alt.endpoint, int(alt.bNumEndpoints))
		for _, ep := range eps {
			fd.endpoints = append(fd.endpoints, uint8(ep.bEndpointAddress))
		}
		out.interfaces = append(out.interfaces, fd)
	}
	return out, nil
}

func numConfigurations(dev cDevicePtr) int {
	desc, err := getDeviceDescriptor(dev)
	if err != nil {
		return 0
	}
	return int(desc.bNumConfigurations)
}

func getMaxPacketSize(dev cDevicePtr, ep uint8) int {
	rc := C.libusb_get_max_packet_size(dev, C.uint8_t(ep))
	if rc < 0 {
		return defaultMaxPacketSize
	}
	return int(rc)
}

func getDeviceSpeed(dev cDevicePtr) int {
	return int(C.libusb_get_device_speed(dev))
}

func openDevice(dev cDevicePtr) (cHandlePtr, error) {
	var h *C.libusb_device_handle
	if rc := C.libusb_open(dev, &h); rc != 0 {
		return nil, newError("libusb_open", int(rc))
	}
	return h, nil
}

func closeHandle(h cHandlePtr) {
	if h != nil {
		C.libusb_close(h)
	}
}

func getConfiguration(h cHandlePtr) (int, error) {
	var cfg C.int
	if rc := C.libusb_get_configuration(h, &cfg); rc != 0 {
		return 0, newError("libusb_get_configuration", int(rc))
	}
	return int(cfg), nil
}

func setConfiguration(h cHandlePtr, cfg int) error {
	if rc := C.libusb_set_configuration(h, C.int(cfg)); rc != 0 {
		return newError("libusb_set_configuration", int(rc))
	}
	return nil
}

func kernelDriverActive(h cHandlePtr, iface int) bool {
	rc := C.libusb_kernel_driver_active(h, C.int(iface))
	return rc == 1
}

func detachKernelDriver(h cHandlePtr, iface int) error {
	if rc := C.libusb_detach_kernel_driver(h, C.int(iface)); rc != 0 {
		return newError("libusb_detach_kernel_driver", int(rc))
	}
	return nil
}

func claimInterface(h cHandlePtr, iface int) error {
	if rc := C.libusb_claim_interface(h, C.int(iface)); rc != 0 {
		return newError("libusb_claim_interface", int(rc))
	}
	return nil
}

func releaseInterface(h cHandlePtr, iface int) error {
	if rc := C.libusb_release_interface(h, C.int(iface)); rc != 0 {
		return newError("libusb_release_interface", int(rc))
	}
	return nil
}

func handleEventsTimeout(ctx *libusbContext, d timeoutDuration) error {
	var tv C.struct_timeval
	tv.tv_sec = C.long(d.sec)
	tv.tv_usec = C.long(d.usec)
	if rc := C.libusb_handle_events_timeout(ctx.ctx, &tv); rc != 0 {
		return newError("libusb_handle_events_timeout", int(rc))
	}
	return nil
}

func getNextTimeout(ctx *libusbContext) (timeoutDuration, bool) {
	var tv C.struct_timeval
	rc := C.libusb_get_next_timeout(ctx.ctx, &tv)
	if rc < 0 {
		return timeoutDuration{}, false
	}
	if rc == 0 {
		return timeoutDuration{}, false
	}
	return timeoutDuration{sec: int64(tv.tv_sec), usec: int64(tv.tv_usec)}, true
}

type timeoutDuration struct {
	sec, usec int64
}

// PollFD mirrors struct libusb_pollfd: a file descriptor the embedder
// should watch for readability, feeding libusb's own internal I/O.
type PollFD struct {
	FD     int32
	Events uint16
}

// pollfdArray lets us walk libusb_get_pollfds' NULL-terminated array
// of pointers without knowing its length ahead of time.
type pollfdArray = [1 << 20]*C.struct_libusb_pollfd

func getPollFDs(ctx *libusbContext) []PollFD {
	list := C.libusb_get_pollfds(ctx.ctx)
	if list == nil {
		return nil
	}
	defer C.libusb_free_pollfds(list)

	arr := (*pollfdArray)(unsafe.Pointer(list))
	var out []PollFD
	for i := 0; arr[i] != nil; i++ {
		out = append(out, PollFD{FD: int32(arr[i].fd), Events: uint16(arr[i].events)})
	}
	return out
}

func hasHotplugCapability() bool {
	return C.libusb_has_capability(C.LIBUSB_CAP_HAS_HOTPLUG) != 0
}

// --- async transfers -------------------------------------------------

// transferKind distinguishes the three transfer shapes the core
// submits; only the kind-specific setup differs, completion handling
// is shared.
type transferKind int

const (
	kindControl transferKind = iota
	kindBulkOut
	kindBulkIn
)

// transfer wraps one in-flight libusb_transfer plus the Go-side state
// needed to safely pin its buffer and dispatch its completion. It is
// always owned by exactly one transferPool from submission to its
// terminal callback, per the Transfer Pool ownership invariant.
type transfer struct {
	c      cTransferPtr
	kind   transferKind
	buf    []byte
	pinner runtime.Pinner
	handle cgo.Handle

	dev *Device

	onComplete func(t *transfer)

	// cancelRequested marks a transfer disconnect has already asked
	// libusb to cancel; avoids issuing a second cancel on the same
	// pointer if disconnect's wait loop re-scans.
	cancelRequested bool
}

// newControlTransfer allocates a transfer carrying a vendor control
// request, laid out exactly as libusb_fill_control_setup expects:
// an 8 byte setup packet followed by wLength bytes of data stage.
func newControlTransfer(dev *Device, bRequestType, bRequest byte, wValue, wIndex, wLength uint16) *transfer {
	buf := make([]byte, controlSetupSize+int(wLength))
	buf[0] = bRequestType
	buf[1] = bRequest
	buf[2] = byte(wValue)
	buf[3] = byte(wValue >> 8)
	buf[4] = byte(wIndex)
	buf[5] = byte(wIndex >> 8)
	buf[6] = byte(wLength)
	buf[7] = byte(wLength >> 8)

	return &transfer{kind: kindControl, buf: buf, dev: dev}
}

func newBulkTransfer(dev *Device, kind transferKind, size int) *transfer {
	return &transfer{kind: kind, buf: make([]byte, size), dev: dev}
}

// controlData returns the data stage of a completed control transfer.
func (t *transfer) controlData() []byte {
	n := int(t.c.actual_length)
	if controlSetupSize+n > len(t.buf) {
		n = len(t.buf) - controlSetupSize
	}
	if n < 0 {
		return nil
	}
	return t.buf[controlSetupSize : controlSetupSize+n]
}

func (t *transfer) actualLength() int { return int(t.c.actual_length) }

func (t *transfer) status() int { return int(t.c.status) }

// submit allocates the underlying C transfer (if needed), fills it
// per t.kind, pins t.buf for the duration of the async operation, and
// submits it. onComplete is invoked by the pump's dispatch loop, from
// inside goTransferCallback, once the transfer reaches a terminal
// state; it must not block and must not free t's Device.
func (t *transfer) submit(h cHandlePtr, ep uint8, timeout uint, onComplete func(t *transfer)) error {
	t.onComplete = onComplete

	if t.c == nil {
		t.c = C.libusb_alloc_transfer(0)
		if t.c == nil {
			return fmt.Errorf("usb: libusb_alloc_transfer failed")
		}
	}

	// submit is called again, on the same *transfer, every time a
	// steady-state RX transfer gets resubmitted in place -- unpin and
	// drop the previous handle first, or both would leak for the life
	// of the device.
	t.pinner.Unpin()
	var bufPtr *C.uchar
	if len(t.buf) > 0 {
		t.pinner.Pin(&t.buf[0])
		bufPtr = (*C.uchar)(unsafe.Pointer(&t.buf[0]))
	}
	if t.handle != 0 {
		t.handle.Delete()
	}
	t.handle = cgo.NewHandle(t)

	cb := C.usbmuxd_transfer_cb()

	switch t.kind {
	case kindControl:
		C.libusb_fill_control_transfer(t.c, h, bufPtr, cb,
			unsafe.Pointer(uintptr(t.handle)), C.uint(timeout))
	case kindBulkOut, kindBulkIn:
		C.libusb_fill_bulk_transfer(t.c, h, C.uchar(ep), bufPtr, C.int(len(t.buf)),
			cb, unsafe.Pointer(uintptr(t.handle)), C.uint(timeout))
	}

	if rc := C.libusb_submit_transfer(t.c); rc != 0 {
		t.pinner.Unpin()
		t.handle.Delete()
		t.handle = 0
		return newError("libusb_submit_transfer", int(rc))
	}
	return nil
}

// cancel asks libusb to cancel an in-flight transfer. The transfer's
// callback will still fire, reporting LIBUSB_TRANSFER_CANCELLED (or
// whatever race it lost to) -- cancel never frees anything itself.
func (t *transfer) cancel() {
	if t.c == nil || t.cancelRequested {
		return
	}
	t.cancelRequested = true
	C.libusb_cancel_transfer(t.c)
}

// release unpins the buffer, deletes the cgo handle, and frees the
// underlying C transfer. Only safe to call once the transfer has
// reached a terminal callback -- never while submitted.
func (t *transfer) release() {
	if t.handle != 0 {
		t.handle.Delete()
		t.handle = 0
	}
	t.pinner.Unpin()
	if t.c != nil {
		C.libusb_free_transfer(t.c)
		t.c = nil
	}
}

//export goTransferCallback
func goTransferCallback(c *C.struct_libusb_transfer) {
	h := cgo.Handle(uintptr(c.user_data))
	v := h.Value()
	t, ok := v.(*transfer)
	if !ok || t == nil {
		return
	}
	if t.onComplete != nil {
		t.onComplete(t)
	}
}

// --- hotplug ----------------------------------------------------------

type hotplugEvent struct {
	bus, address uint8
	arrived      bool
}

// hotplugEvents is package-level because libusb's hotplug callback has
// no per-registration Go-side context to carry a channel in -- fine
// given one process runs exactly one Core, matching the single static
// usb_ctx the original keeps.
var hotplugEvents chan hotplugEvent

type hotplugHandle struct {
	ctx *libusbContext
	h   C.libusb_hotplug_callback_handle
}

func registerHotplug(ctx *libusbContext, vendor uint16, events chan hotplugEvent) (*hotplugHandle, error) {
	hotplugEvents = events

	var h C.libusb_hotplug_callback_handle
	rc := C.libusb_hotplug_register_callback(
		ctx.ctx,
		C.LIBUSB_HOTPLUG_EVENT_DEVICE_ARRIVED|C.LIBUSB_HOTPLUG_EVENT_DEVICE_LEFT,
		C.LIBUSB_HOTPLUG_ENUMERATE,
		C.int(vendor),
		C.LIBUSB_HOTPLUG_MATCH_ANY,
		C.LIBUSB_HOTPLUG_MATCH_ANY,
		C.usbmuxd_hotplug_cb(),
		nil,
		&h,
	)
	if rc != 0 {
		return nil, newError("libusb_hotplug_register_callback", int(rc))
	}
	return &hotplugHandle{ctx: ctx, h: h}, nil
}

func (hh *hotplugHandle) deregister() {
	if hh == nil {
		return
	}
	C.libusb_hotplug_deregister_callback(hh.ctx.ctx, hh.h)
}

//export goHotplugCallback
func goHotplugCallback(ctx *C.libusb_context, device *C.libusb_device, event C.int, userData unsafe.Pointer) {
	if hotplugEvents == nil {
		return
	}
	bus, addr := getBusAddress(device)
	ev := hotplugEvent{
		bus:     bus,
		address: addr,
		arrived: event == C.LIBUSB_HOTPLUG_EVENT_DEVICE_ARRIVED,
	}
	select {
	case hotplugEvents <- ev:
	default:
	}
}
