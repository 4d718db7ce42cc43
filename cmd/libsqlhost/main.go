package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/tomyedwab/libsqlshim/sqlproxy/connector"
	sqlhost "github.com/tomyedwab/libsqlshim/sqlproxy/host"
	"github.com/tomyedwab/libsqlshim/wasi/host"
)

// GuestDSNEnv is the guest environment variable carrying the -dsn flag.
const GuestDSNEnv = "LIBSQLSHIM_DSN"

func main() {
	wasmFile := flag.String("wasm", "", "Path to the WASM file to load")
	dsn := flag.String("dsn", "", "Connect arguments handed to the guest (URL or JSON)")
	call := flag.String("call", "run", "Guest export to invoke after _initialize; empty to skip")
	engineLog := flag.String("engine-log", "", "Turso engine log level (error, warn, info, debug, trace)")
	trace := flag.Bool("trace", false, "Log every bridge request and response")
	flag.Parse()

	if *wasmFile == "" {
		log.Fatal("WASM file path must be provided via -wasm flag")
	}
	if *engineLog != "" {
		connector.SetEngineLogLevel(*engineLog)
	}

	wasmBytes, err := os.ReadFile(*wasmFile)
	if err != nil {
		log.Fatalf("Failed to read WASM file %s: %v", *wasmFile, err)
	}

	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	defer r.Close(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, r)

	bridge := host.NewBridge(sqlhost.NewSQLHost())
	bridge.Trace = *trace
	if _, err := bridge.Instantiate(ctx, r); err != nil {
		log.Fatal(err)
	}

	// Instantiate the guest and run its `_initialize` reactor entry point.
	config := wazero.NewModuleConfig().
		WithStartFunctions("_initialize").
		WithStdout(os.Stdout).
		WithStderr(os.Stderr).
		WithSysWalltime().
		WithSysNanotime()
	if *dsn != "" {
		config = config.WithEnv(GuestDSNEnv, *dsn)
	}
	guest, err := r.InstantiateWithConfig(ctx, wasmBytes, config)
	if err != nil {
		log.Fatalf("Failed to instantiate %s: %v", *wasmFile, err)
	}
	defer guest.Close(ctx)

	if *call == "" {
		return
	}
	fn := guest.ExportedFunction(*call)
	if fn == nil {
		log.Fatalf("Guest does not export %q", *call)
	}
	results, err := fn.Call(ctx)
	if err != nil {
		log.Fatalf("%s failed: %v", *call, err)
	}
	if len(results) > 0 && results[0] != 0 {
		log.Printf("%s exited with status %d", *call, int32(results[0]))
		os.Exit(1)
	}
}
