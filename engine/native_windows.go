//go:build windows

package engine

import (
	"modworks/process_windows"
)

var nativeOpener = process_windows.Opener
