// Package host exposes the database bridge to WASI guests running on wazero.
//
// A guest calls env.libsql_host_handler with the address and length of a JSON
// request in its own memory. The host answers by allocating a buffer through
// the guest's alloc_bytes export, copying the JSON response into it and
// returning the buffer handle. Bit 32 of the return value is set when the
// buffer holds a plain error message instead of a response document.
package host

import (
	"context"
	"fmt"
	"log"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	sqlhost "github.com/tomyedwab/libsqlshim/sqlproxy/host"
)

const (
	// ModuleName is the import module guests resolve the handler from.
	ModuleName = "env"
	// HandlerName is the exported host function name.
	HandlerName = "libsql_host_handler"

	errorFlag = uint64(1) << 32
)

// Bridge routes guest requests to a SQLHost.
type Bridge struct {
	sql *sqlhost.SQLHost

	// Trace logs every request and response payload.
	Trace bool
}

func NewBridge(sql *sqlhost.SQLHost) *Bridge {
	return &Bridge{sql: sql}
}

// Instantiate registers the bridge as a host module on r. It must run before
// any guest importing the handler is instantiated.
func (b *Bridge) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	return r.NewHostModuleBuilder(ModuleName).
		NewFunctionBuilder().WithFunc(b.handle).Export(HandlerName).
		Instantiate(ctx)
}

func (b *Bridge) handle(ctx context.Context, m api.Module, reqOffset, reqByteCount uint32) uint64 {
	request, err := readBytes(m, reqOffset, reqByteCount)
	if err != nil {
		log.Printf("[bridge] %v", err)
		return uint64(mustWriteBytes(ctx, m, []byte(err.Error()))) | errorFlag
	}
	if b.Trace {
		log.Printf("[bridge] REQ: %s", request)
	}

	response, err := b.sql.HandleRequest(ctx, request)
	if err != nil {
		// response still carries a generic error document the guest can decode
		log.Printf("[bridge] error handling request: %v", err)
	}
	if b.Trace {
		log.Printf("[bridge] RESP: %s", response)
	}
	return uint64(mustWriteBytes(ctx, m, response))
}

// readBytes copies the request out of guest memory so it stays valid after
// the guest reuses its buffer.
func readBytes(m api.Module, offset, byteCount uint32) ([]byte, error) {
	buf, ok := m.Memory().Read(offset, byteCount)
	if !ok {
		return nil, fmt.Errorf("Memory.Read(%d, %d) out of range", offset, byteCount)
	}
	return append([]byte(nil), buf...), nil
}

// writeBytes places data in a guest buffer obtained from alloc_bytes and
// returns the buffer's handle. The guest frees it once it has copied the
// contents.
func writeBytes(ctx context.Context, m api.Module, data []byte) (uint32, error) {
	alloc := m.ExportedFunction("alloc_bytes")
	if alloc == nil {
		return 0, fmt.Errorf("guest does not export alloc_bytes")
	}
	result, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("alloc_bytes(%d): %w", len(data), err)
	}
	handle := uint32(result[0] >> 32)
	ptr := uint32(result[0])
	if !m.Memory().Write(ptr, data) {
		if free := m.ExportedFunction("free_bytes"); free != nil {
			_, _ = free.Call(ctx, uint64(handle))
		}
		return 0, fmt.Errorf("Memory.Write(%d, %d) out of range", ptr, len(data))
	}
	return handle, nil
}

// mustWriteBytes traps the calling guest when the response cannot be handed
// back, since there is no other channel left to report the failure on.
func mustWriteBytes(ctx context.Context, m api.Module, data []byte) uint32 {
	handle, err := writeBytes(ctx, m, data)
	if err != nil {
		log.Panicf("[bridge] %v", err)
	}
	return handle
}
