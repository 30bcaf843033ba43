package main

import (
	"fmt"
	"os"
)

// Status and diagnostics go to stderr so verse output on stdout stays
// pipeable. The --no-color flag strips the ANSI escapes.

const (
	ansiReset  = "\033[0m"
	ansiRed    = "\033[31m"
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiCyan   = "\033[36m"
	ansiBold   = "\033[1m"
)

func colorize(code, text string) string {
	if noColor {
		return text
	}
	return code + text + ansiReset
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(ansiGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(ansiRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(ansiYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

func printStatus(label string, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s %s\n",
		colorize(ansiBold, label+":"), fmt.Sprintf(format, args...))
}

// printQuote renders a verse the way chat and daily both show it: the text
// quoted, then an attribution line carrying the source and the verse id.
func printQuote(text, source, verseID string) {
	fmt.Printf("%s\n%s\n", colorize(ansiBold, "\""+text+"\""),
		colorize(ansiCyan, fmt.Sprintf("— %s (%s)", source, verseID)))
}
