// Package sym defines the glyphs cystub prints in front of commands and
// result lines. They are stable across help text, output and docs.
package sym

// Command glyphs
const (
	AM        = "≡" // am: configuration
	Generate  = "▤" // generate: stubs written next to the sources
	Check     = "⊨" // check: committed stubs entail the fresh ones
	Transform = "⟶" // transform: repair stubs produced elsewhere
	Watch     = "꩜" // watch: rerun on change
)

// Result markers
const (
	OK   = "✓"
	Fail = "✗"
	Skip = "⚠"
)

// entry binds a command name to its glyph and description.
type entry struct {
	glyph       string
	command     string
	description string
}

// registry lists the commands in help order.
var registry = []entry{
	{Generate, "generate", "Generate stubs next to the sources"},
	{Check, "check", "Verify the committed stubs are up to date"},
	{Transform, "transform", "Repair existing stub files in place"},
	{Watch, "watch", "Regenerate stubs whenever a source changes"},
	{AM, "am", "Manage cystub configuration"},
}

var commandToGlyph = func() map[string]string {
	m := make(map[string]string, len(registry))
	for _, e := range registry {
		m[e.command] = e.glyph
	}
	return m
}()

// ForCommand returns the glyph of a command, or "" if it has none.
func ForCommand(command string) string {
	return commandToGlyph[command]
}

// Short prefixes a command's short help with its glyph.
func Short(command, text string) string {
	if g := ForCommand(command); g != "" {
		return g + " " + text
	}
	return text
}

// Commands returns the command names in help order.
func Commands() []string {
	names := make([]string, len(registry))
	for i, e := range registry {
		names[i] = e.command
	}
	return names
}

// Describe returns the one-line description of a command.
func Describe(command string) string {
	for _, e := range registry {
		if e.command == command {
			return e.description
		}
	}
	return ""
}
