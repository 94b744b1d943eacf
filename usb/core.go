/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Core: wiring, Event Pump, disconnect protocol
 */

package usb

import (
	"time"

	"github.com/WIPERAPP/usbmuxd/usbconf"
	"github.com/WIPERAPP/usbmuxd/usblog"
)

// Core owns the libusb context, the device registry, and the single
// event pump loop that drives everything else. Exactly one goroutine
// may call into Core's Process/ProcessFor/Discover methods at a
// time -- the cooperative single-threaded model spec.md §7 describes
// is enforced by convention, not by an internal mutex, because the
// whole point is that callbacks run synchronously on that same
// goroutine's stack.
type Core struct {
	libusb *libusbContext
	reg    registry

	cfg  usbconf.Config
	log  *usblog.Logger
	sink ByteSink

	arrivals ArrivalNotifier

	hotplug       *hotplugHandle
	hotplugEvents chan hotplugEvent

	pollFailures        int
	autodiscoverPolling bool
	autodiscoverHotplug bool
	lastPoll            time.Time
}

// New creates a Core. sink and arrivals may be nil, in which case
// inbound data is discarded and every device is accepted.
func New(cfg usbconf.Config, log *usblog.Logger, sink ByteSink, arrivals ArrivalNotifier) *Core {
	return &Core{
		cfg:                 cfg,
		log:                 log,
		sink:                sink,
		arrivals:            arrivals,
		hotplugEvents:       make(chan hotplugEvent, 64),
		autodiscoverPolling: true,
		autodiscoverHotplug: true,
	}
}

// Init opens the libusb context and, where supported, registers for
// hotplug notification. Mirrors usb_init: hotplug capability is
// optional, its absence just means Process falls back to polling
// alone.
func (core *Core) Init() error {
	ctx, err := libusbNewContext()
	if err != nil {
		return ErrNoLibusb
	}
	core.libusb = ctx

	if hasHotplugCapability() {
		hh, err := registerHotplug(ctx, VendorApple, core.hotplugEvents)
		if err != nil {
			if core.log != nil {
				core.log.Warning("hotplug registration failed, falling back to polling: %v", err)
			}
		} else {
			core.hotplug = hh
			core.autodiscoverPolling = false
		}
	} else if core.log != nil {
		core.log.Notice("libusb build has no hotplug capability, polling only")
	}

	return nil
}

// Shutdown tears down every remaining device and releases the
// libusb context. Matches usb_shutdown.
func (core *Core) Shutdown() {
	for _, dev := range core.reg.all() {
		core.disconnect(dev)
	}

	if core.hotplug != nil {
		core.hotplug.deregister()
		core.hotplug = nil
	}
	if core.libusb != nil {
		core.libusb.close()
		core.libusb = nil
	}
}

// Discover runs one polling enumeration pass immediately, regardless
// of the autodiscover-polling flag. Used for the initial population
// at startup and by the diagnostic tooling.
func (core *Core) Discover() error {
	core.lastPoll = nowFunc()
	return core.pollEnumerate()
}

// GetFds returns the file descriptors the embedder should multiplex
// alongside its own, feeding libusb's internal I/O when they become
// readable. Matches usb_get_fds.
func (core *Core) GetFds() []PollFD {
	if core.libusb == nil {
		return nil
	}
	return getPollFDs(core.libusb)
}

// GetTimeout returns how long the caller may safely block before
// calling Process again: the lesser of libusb's own requested
// timeout and the remaining time until the next poll is due (capped
// large when polling is disabled). Matches usb_get_timeout.
func (core *Core) GetTimeout() time.Duration {
	timeout := core.pollRemaining()

	if core.libusb != nil {
		if d, ok := getNextTimeout(core.libusb); ok {
			libusbTimeout := time.Duration(d.sec)*time.Second + time.Duration(d.usec)*time.Microsecond
			if libusbTimeout < timeout {
				timeout = libusbTimeout
			}
		}
	}
	return timeout
}

// Send queues data for transmission on dev's bulk OUT endpoint,
// completing the bidirectional half of the transfer pipeline that
// submitRx's resubmission loop provides inbound. onComplete, if
// non-nil, is invoked once the write has landed or failed; a ZLP, if
// one is needed, is submitted just before that call and its own
// outcome is not reported.
func (core *Core) Send(dev *Device, data []byte, onComplete func(ok bool, err error)) error {
	return dev.sendBulk(data, onComplete)
}

func (core *Core) pollRemaining() time.Duration {
	if !core.autodiscoverPolling {
		return time.Hour
	}
	interval := time.Duration(core.cfg.PollIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = DevicePollInterval
	}
	elapsed := nowFunc().Sub(core.lastPoll)
	remaining := interval - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Process dispatches any pending libusb events with a zero timeout,
// drains pending hotplug notifications, runs the reap sweep, and
// polls again if the poll interval has elapsed. Call this whenever
// GetFds' descriptors become readable, or at least once per
// GetTimeout. Matches usb_process.
func (core *Core) Process() error {
	return core.ProcessFor(0)
}

// ProcessFor is like Process but blocks dispatching events for up to
// d before returning, the way usb_process_timeout does. A reap sweep
// runs after every dispatch, not just on the way out, since a single
// libusb_handle_events_timeout call can run many transfer callbacks.
func (core *Core) ProcessFor(d time.Duration) error {
	if core.libusb != nil {
		td := timeoutDuration{
			sec:  int64(d / time.Second),
			usec: int64((d % time.Second) / time.Microsecond),
		}
		if err := handleEventsTimeout(core.libusb, td); err != nil {
			return err
		}
	}

	core.dispatchHotplugEvents()
	core.reapDead()

	if core.autodiscoverPolling && core.pollRemaining() <= 0 {
		if err := core.Discover(); err != nil {
			return err
		}
	}
	return nil
}

// nowFunc is a seam for tests; production code always uses time.Now.
var nowFunc = time.Now

// disconnect begins teardown of dev: it is marked dead, every
// in-flight transfer is cancelled, and the pump waits up to
// DisconnectCancelBudget dispatching events for the cancellations to
// land. Anything still outstanding after the budget is forcibly
// released rather than waited on further -- matching usb_disconnect's
// "cancel everything, wait briefly, then force it" sequence, which
// exists so one wedged transfer can never block the whole pump.
func (core *Core) disconnect(dev *Device) {
	dev.markDead()

	dev.mu.Lock()
	h := dev.handle
	dev.mu.Unlock()
	if h == nil {
		return
	}

	dev.rx.cancelAll()
	dev.tx.cancelAll()

	deadline := DisconnectCancelBudget
	waited := time.Duration(0)
	for waited < deadline {
		if dev.rx.len() == 0 && dev.tx.len() == 0 {
			break
		}
		if core.libusb != nil {
			handleEventsTimeout(core.libusb, timeoutDuration{usec: disconnectStepInterval.Microseconds()})
		}
		waited += disconnectStepInterval
	}

	if dev.rx.len() > 0 {
		dev.rx.forceRelease()
	}
	if dev.tx.len() > 0 {
		dev.tx.forceRelease()
	}

	core.finalizeDisconnect(dev)
}

// finalizeDisconnect releases dev's interface and closes its handle
// if still open, then removes it from the registry. It is the last
// step of disconnect's cancel/wait/force-release sequence and is
// idempotent; never called from inside a callback, since it is what
// actually frees the device. The DeviceRemoved notification fires
// here, under the h != nil guard, so it runs exactly once per device --
// and never for a device a polling pass merely marked dead in transit
// before finding it still attached.
func (core *Core) finalizeDisconnect(dev *Device) {
	dev.mu.Lock()
	h := dev.handle
	iface := dev.interfaceNum
	initialized := dev.initialized
	dev.handle = nil
	dev.mu.Unlock()

	if h != nil {
		releaseInterface(h, iface)
		closeHandle(h)
		if initialized {
			core.notifyRemoved(dev)
		}
	}

	core.reg.remove(dev)
}
