//go:build linux

package engine

import (
	"modworks/process_linux"
)

var nativeOpener = process_linux.Opener
