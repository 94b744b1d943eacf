/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Diagnostic CLI: lists attached devices without claiming them
 */

package main

import (
	"fmt"
	"os"

	"github.com/google/gousb"

	"github.com/WIPERAPP/usbmuxd/usb"
)

// guessModeFromDesc re-implements usb.guessMode against a gousb
// descriptor instead of a raw libusb_device, since this tool never
// opens a real libusb context -- it only wants a quick read-only
// listing, grounded on the teacher's usb.go/usbaddr.go use of gousb
// for exactly this kind of non-claiming enumeration.
func guessModeFromDesc(desc *gousb.DeviceDesc) int {
	n := len(desc.Configs)

	switch {
	case n == 1:
		return usb.ModeCDCNCMDirect
	case n >= 2 && n <= 4:
		return usb.ModeInitial
	case n == 6:
		return usb.ModeUSBEthCDCNCM
	case n == 5:
		return guessModeFromConfig5Desc(desc)
	default:
		return usb.ModeUndetermined
	}
}

func guessModeFromConfig5Desc(desc *gousb.DeviceDesc) int {
	cfg, ok := desc.Configs[5]
	if !ok {
		return usb.ModeUndetermined
	}

	var hasMultiplex, hasValeria, hasCDCNCM bool
	for _, iface := range cfg.Interfaces {
		for _, alt := range iface.AltSettings {
			class := uint8(alt.Class)
			subClass := uint8(alt.SubClass)
			protocol := uint8(alt.Protocol)
			if class == usb.InterfaceClass && subClass == usb.InterfaceSubClass && protocol == usb.InterfaceProtocol {
				hasMultiplex = true
			}
			if subClass == 42 && protocol == 255 {
				hasValeria = true
			}
			if class == 2 && subClass == 0x0d {
				hasCDCNCM = true
			}
		}
	}

	switch {
	case hasValeria && hasMultiplex:
		return usb.ModeValeria
	case hasCDCNCM && hasMultiplex:
		return usb.ModeCDCNCM
	default:
		return usb.ModeUndetermined
	}
}

func isCandidateProductID(pid gousb.ID) bool {
	v := uint16(pid)
	if v == usb.ProductT2Coprocessor {
		return true
	}
	if v >= usb.ProductSiliconRestoreLow && v <= usb.ProductSiliconRestoreMax {
		return true
	}
	if v >= usb.ProductRangeLow && v <= usb.ProductRangeMax {
		return true
	}
	return false
}

func main() {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == usb.VendorApple && isCandidateProductID(desc.Product)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "usbmuxd-core-probe: enumeration failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		for _, d := range devs {
			d.Close()
		}
	}()

	if len(devs) == 0 {
		fmt.Println("no candidate devices found")
		return
	}

	for _, d := range devs {
		mode := guessModeFromDesc(&d.Desc)
		serial, _ := d.SerialNumber()
		fmt.Printf("bus %d addr %d  vid=%04x pid=%04x  guessed-mode=%d  serial=%q\n",
			d.Desc.Bus, d.Desc.Address, uint16(d.Desc.Vendor), uint16(d.Desc.Product), mode, serial)
	}
}
