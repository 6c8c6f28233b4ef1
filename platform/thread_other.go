//go:build !linux

package platform

import nativert "github.com/wippyai/native-runtime"

// No portable thread identity source exists off Linux without cgo. Embedders
// on these platforms construct the platform with WithThreadID.
func osThreadID() uint64 {
	nativert.Check(false, "no default thread id source on this OS; construct the platform with WithThreadID")
	return 0
}
