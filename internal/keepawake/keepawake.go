// Package keepawake asks the operating system not to sleep while a long
// upmix is running.
package keepawake

// Acquire requests a system sleep inhibition and returns a release
// function. On platforms without an inhibition API this is a no-op; the
// release function is always safe to call.
//
// TODO: wire org.freedesktop.ScreenSaver over D-Bus on Linux desktops.
func Acquire() func() {
	return func() {}
}
