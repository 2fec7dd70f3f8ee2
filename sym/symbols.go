// Package sym defines the glyphs attached to log lines and CLI output as the
// `symbol` field, one per subsystem of the integration pipeline.
package sym

// Subsystem glyphs.
const (
	AM    = "≡" // configuration
	IX    = "⨳" // feed ingestion (fetch, adapters)
	Norm  = "≈" // normalization engine
	Media = "▦" // image ingestion and object storage
	Store = "⊔" // canonical listing store and migrations
)

// Pulse glyphs mark the job orchestration layer.
const (
	Pulse      = "꩜" // queue, workers, orchestrator runs
	PulseOpen  = "✿" // worker startup and stuck-run recovery
	PulseClose = "❀" // worker shutdown
)

// DB is kept as the name used by the db package for migration logs.
const DB = Store

// Commands maps CLI command names to the glyph printed in their headers.
var Commands = map[string]string{
	"am":      AM,
	"run":     IX,
	"pulse":   Pulse,
	"jobs":    Pulse,
	"enqueue": Pulse,
	"db":      Store,
}

// ForCommand returns the glyph for a CLI command, or an empty string.
func ForCommand(cmd string) string {
	return Commands[cmd]
}
