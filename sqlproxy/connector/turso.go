package connector

import (
	"log"
	"os"
	"sync"

	turso_libs "github.com/tursodatabase/turso-go-platform-libs"
	turso "turso.tech/database/tursogo"
)

// EngineLogEnv names the environment variable holding the default turso
// tracing level.
const EngineLogEnv = "LIBSQLSHIM_ENGINE_LOG"

var (
	tursoOnce      sync.Once
	engineLogLevel = os.Getenv(EngineLogEnv)
)

// SetEngineLogLevel forwards turso tracing at level (error, warn, info, debug
// or trace) to the standard logger. It only takes effect when called before
// the first turso-backed database is opened.
func SetEngineLogLevel(level string) {
	engineLogLevel = level
}

func initTurso() {
	tursoOnce.Do(func() {
		turso.InitLibrary(turso_libs.LoadTursoLibraryConfig{LoadStrategy: "mixed"})
		if engineLogLevel == "" {
			return
		}
		err := turso.Setup(turso.TursoConfig{
			Logger:   logEngineEvent,
			LogLevel: engineLogLevel,
		})
		if err != nil {
			log.Printf("[turso] failed to install engine logger: %v", err)
		}
	})
}

var tracingLevels = map[turso.TursoTracingLevel]string{
	turso.TURSO_TRACING_LEVEL_ERROR: "ERROR",
	turso.TURSO_TRACING_LEVEL_WARN:  "WARN",
	turso.TURSO_TRACING_LEVEL_INFO:  "INFO",
	turso.TURSO_TRACING_LEVEL_DEBUG: "DEBUG",
	turso.TURSO_TRACING_LEVEL_TRACE: "TRACE",
}

func logEngineEvent(event turso.TursoLog) {
	level, ok := tracingLevels[event.Level]
	if !ok {
		level = "LOG"
	}
	log.Printf("[turso] [%s] %s:%d %s", level, event.File, event.Line, event.Message)
}
