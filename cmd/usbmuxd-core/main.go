/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Daemon entry point
 */

package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WIPERAPP/usbmuxd/usb"
	"github.com/WIPERAPP/usbmuxd/usbconf"
	"github.com/WIPERAPP/usbmuxd/usblog"
)

// stubSink is the in-process stand-in for the out-of-scope
// multiplexing layer: it just counts and logs bytes arriving on each
// device's bulk IN endpoint.
type stubSink struct {
	log *usblog.Logger
}

func (s *stubSink) Deliver(dev *usb.Device, data []byte) {
	if s.log != nil {
		s.log.Spew("device %d:%d: %d bytes in", dev.Bus(), dev.Address(), len(data))
	}
}

// stubArrivals is the in-process stand-in for the client-socket
// layer's device bookkeeping: it logs arrivals and removals and
// never rejects a device.
type stubArrivals struct {
	log *usblog.Logger
}

func (s *stubArrivals) DeviceAdded(dev *usb.Device) int {
	if s.log != nil {
		s.log.Notice("device %d:%d arrived, serial=%q mode=%d", dev.Bus(), dev.Address(), dev.Serial(), dev.Mode())
	}
	return 0
}

func (s *stubArrivals) DeviceRemoved(dev *usb.Device) {
	if s.log != nil {
		s.log.Notice("device %d:%d removed", dev.Bus(), dev.Address())
	}
}

func levelFromString(s string) usblog.Level {
	switch s {
	case "error":
		return usblog.LevelError
	case "warning":
		return usblog.LevelWarning
	case "notice":
		return usblog.LevelNotice
	case "debug":
		return usblog.LevelDebug
	case "spew":
		return usblog.LevelSpew
	default:
		return usblog.LevelInfo
	}
}

func main() {
	confPath := flag.String("c", PathConfFile, "path to configuration file")
	foreground := flag.Bool("debug", false, "run in foreground, log to stderr")
	background := flag.Bool("bg", false, "run in background, log to "+PathLogFile+" (ignored with -debug)")
	flag.Parse()

	cfg, err := usbconf.Load(*confPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "usbmuxd-core: %v\n", err)
		os.Exit(1)
	}

	if *background && !*foreground {
		if err := Daemon(); err != nil {
			fmt.Fprintf(os.Stderr, "usbmuxd-core: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	var log *usblog.Logger
	if *foreground {
		log = usblog.NewConsole(levelFromString(cfg.LogLevel))
	} else {
		if err := os.MkdirAll(PathLogDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "usbmuxd-core: %v\n", err)
			os.Exit(1)
		}
		logFile, err := os.OpenFile(PathLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "usbmuxd-core: %v\n", err)
			os.Exit(1)
		}
		defer logFile.Close()
		log = usblog.New(logFile, levelFromString(cfg.LogLevel))
	}

	if err := os.MkdirAll(PathLockDir, 0755); err == nil {
		lockFile, err := os.OpenFile(PathLockFile, os.O_CREATE|os.O_RDWR, 0644)
		if err == nil {
			defer lockFile.Close()
			if err := FileLock(lockFile, true, false); err != nil {
				log.Error("another instance appears to be running: %v", err)
				os.Exit(1)
			}
			defer FileUnlock(lockFile)
		}
	}

	core := usb.New(cfg, log, &stubSink{log: log}, &stubArrivals{log: log})
	if err := core.Init(); err != nil {
		log.Error("failed to initialize libusb: %v", err)
		os.Exit(1)
	}
	defer core.Shutdown()

	if err := core.Discover(); err != nil {
		log.Error("initial device discovery failed: %v", err)
		os.Exit(1)
	}

	if !*foreground {
		if err := CloseStdInOutErr(); err != nil {
			log.Warning("could not close standard descriptors: %v", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Notice("usbmuxd-core started")

	for {
		select {
		case <-sigCh:
			log.Notice("shutting down")
			return
		default:
		}

		timeout := core.GetTimeout()
		if timeout <= 0 {
			timeout = time.Millisecond
		}
		if timeout > time.Second {
			timeout = time.Second
		}

		if err := core.ProcessFor(timeout); err != nil {
			log.Error("device discovery failed repeatedly, giving up: %v", err)
			return
		}
	}
}
