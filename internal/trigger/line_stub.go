//go:build !linux || (!arm && !arm64)

package trigger

import "fmt"

func openLine(pin int) (Line, error) {
	return nil, fmt.Errorf("trigger: gpio unsupported on this platform")
}

var openLineFn = openLine
