//go:build !linux

package main

import "os"

// readDevices starts one blocking reader per keyboard.
func readDevices(files []*os.File, events chan<- inputEvent, readErr chan<- error) {
	for _, f := range files {
		go readInputEvents(f, events, readErr)
	}
}
