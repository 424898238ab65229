package output

import (
	"io"
	"os"
)

// Printer renders command results.
type Printer interface {
	Print(v any) error
}

// New returns the JSON printer when asJSON is set and the human printer
// otherwise. A nil w writes to stdout.
func New(asJSON bool, w io.Writer) Printer {
	if w == nil {
		w = os.Stdout
	}
	if asJSON {
		return JSONPrinter{Out: w}
	}
	return HumanPrinter{Out: w}
}
