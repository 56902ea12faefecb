// helpers.go
package sharekit

import (
	"log"
	"os"
	"reflect"
)

// typeFor returns the reflect.Type of E, mirroring reflect.TypeFor, which is
// not available on the Go version this module is built with.
func typeFor[E any]() reflect.Type {
	return reflect.TypeOf((*E)(nil)).Elem()
}

// IsWireLoggingEnabled gates frame-level logging. Set via Config.WireLogging
// or the SHAREKIT_WIRE_LOGGING=1 environment variable.
var IsWireLoggingEnabled = os.Getenv("SHAREKIT_WIRE_LOGGING") == "1"

func logFrame(instanceID, direction string, frame []byte) {
	if !IsWireLoggingEnabled {
		return
	}
	log.Printf("[WIRE %s %s]: %s", instanceID, direction, frame)
}
