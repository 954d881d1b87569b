// Package cliutil provides consistent CLI output formatting for cqs's
// command tree, with colorized icons via fatih/color.
package cliutil

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Writer formats status lines, progress, and code blocks for a command's
// stdout/stderr, colorizing icons when the underlying stream is a
// terminal.
type Writer struct {
	out      io.Writer
	useColor bool
}

// New creates a Writer over out, enabling color only when NoColor
// reports the stream supports it (fatih/color already inspects
// isatty/NO_COLOR for us).
func New(out io.Writer) *Writer {
	return &Writer{out: out, useColor: !color.NoColor}
}

// Status prints a status message with an icon.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a green checkmark line.
func (w *Writer) Success(msg string) {
	w.colored(color.FgGreen, "✓", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a yellow warning line.
func (w *Writer) Warning(msg string) {
	w.colored(color.FgYellow, "!", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints a red error line.
func (w *Writer) Error(msg string) {
	w.colored(color.FgRed, "✗", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

func (w *Writer) colored(attr color.Attribute, icon, msg string) {
	if !w.useColor {
		w.Status(icon, msg)
		return
	}
	c := color.New(attr)
	_, _ = fmt.Fprintf(w.out, "%s %s\n", c.Sprint(icon), msg)
}

// Code prints an indented code block.
func (w *Writer) Code(content string) {
	_, _ = fmt.Fprintln(w.out)
	for _, line := range strings.Split(content, "\n") {
		_, _ = fmt.Fprintf(w.out, "  %s\n", line)
	}
	_, _ = fmt.Fprintln(w.out)
}

// Newline prints a blank line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Dim renders msg in a dimmed color, or unchanged when color is off.
func (w *Writer) Dim(msg string) string {
	if !w.useColor {
		return msg
	}
	return color.New(color.Faint).Sprint(msg)
}
