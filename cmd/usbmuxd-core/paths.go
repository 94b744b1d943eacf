/* usbmuxd-core - USB device management core for an Apple mobile
 * device multiplexer
 *
 * Common paths
 */

package main

const (
	// PathConfDir defines path to configuration directory
	PathConfDir = "/etc/usbmuxd-core"

	// PathConfFile defines path to the main configuration file
	PathConfFile = PathConfDir + "/usbmuxd-core.ini"

	// PathProgState defines path to program state directory
	PathProgState = "/var/lib/usbmuxd-core"

	// PathLockDir defines path to directory that contains lock files
	PathLockDir = PathProgState + "/lock"

	// PathLockFile defines path to lock file
	PathLockFile = PathLockDir + "/usbmuxd-core.lock"

	// PathLogDir defines path to log directory
	PathLogDir = "/var/log/usbmuxd-core"

	// PathLogFile defines path to the main log file
	PathLogFile = PathLogDir + "/main.log"
)
