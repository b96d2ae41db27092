//go:build !linux && !windows

package engine

import (
	"fmt"
	"runtime"

	"modworks/process"
)

var nativeOpener = process.OpenerFunc(func(pid process.ProcessID) (process.Process, error) {
	return nil, fmt.Errorf("no process backend for %s", runtime.GOOS)
})
