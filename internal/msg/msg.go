package msg

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// Out is where every message goes
var Out io.Writer = os.Stdout

func Error(format string, a ...any) {
	fmt.Fprint(Out, color.HiRedString("error"))
	fmt.Fprint(Out, ": ")
	fmt.Fprintf(Out, format, a...)
	fmt.Fprint(Out, "\n")
}

func Warn(format string, a ...any) {
	fmt.Fprint(Out, color.YellowString("warn"))
	fmt.Fprint(Out, ": ")
	fmt.Fprintf(Out, format, a...)
	fmt.Fprint(Out, "\n")
}

func Fatal(format string, a ...any) {
	fmt.Fprint(Out, color.RedString("fatal"))
	fmt.Fprint(Out, ": ")
	fmt.Fprintf(Out, format, a...)
	fmt.Fprint(Out, "\n")
	os.Exit(1)
}

func Info(format string, a ...any) {
	fmt.Fprint(Out, color.HiGreenString("info"))
	fmt.Fprint(Out, ": ")
	fmt.Fprintf(Out, format, a...)
	fmt.Fprint(Out, "\n")
}

// Step prints a progress line with a right-aligned verb, e.g.
//
//	 Resolving SimGraphicsNative 1.1.3
//	  Building shared=true,raytracing=false
func Step(verb, format string, a ...any) {
	fmt.Fprintf(Out, "%s %s\n", color.HiGreenString("%12s", verb), fmt.Sprintf(format, a...))
}

type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	for _, c := range p {
		if !w.didIndent {
			w.W.Write([]byte(w.Indent))
			w.didIndent = true
		}
		w.W.Write([]byte{c}) // FIXME-perf: buffer this
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	return len(p), nil
}
