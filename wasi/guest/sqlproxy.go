//go:build wasip1

// Package guest connects the sqlproxy client inside a WASI module to the
// host's env.libsql_host_handler import. Importing it is enough:
//
//	import _ "github.com/tomyedwab/libsqlshim/wasi/guest"
//
// after which the libsqlproxy database/sql driver works from guest code.
package guest

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/tomyedwab/libsqlshim/sqlproxy/client"
)

const errorFlag = uint64(1) << 32

//go:wasmimport env libsql_host_handler
func libsql_host_handler(reqPtr unsafe.Pointer, reqLen uint32) uint64

func init() {
	client.SetHostHandler(callHost)
}

func callHost(payload []byte) ([]byte, error) {
	result := libsql_host_handler(unsafe.Pointer(unsafe.SliceData(payload)), uint32(len(payload)))
	runtime.KeepAlive(payload)
	response := takeBytes(uint32(result))
	if result&errorFlag != 0 {
		return nil, fmt.Errorf("libsql_host_handler returned error: %s", response)
	}
	return response, nil
}
