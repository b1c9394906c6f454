package color

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const (
	Reset = "\033[0m"

	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"

	BrightRed = "\033[91m"
)

var colorEnabled = Detect()

// Detect reports whether stdout should get colors: NO_COLOR wins, then
// CLICOLOR_FORCE, then whether stdout is a terminal.
func Detect() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if force := os.Getenv("CLICOLOR_FORCE"); force != "" && force != "0" {
		return true
	}
	return isTerminal(os.Stdout)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func EnableColor(enable bool) {
	colorEnabled = enable
}

func IsColorEnabled() bool {
	return colorEnabled
}

func Colorize(color, text string) string {
	if !colorEnabled {
		return text
	}
	return color + text + Reset
}

func BrightRedText(text string) string {
	return Colorize(BrightRed, text)
}

func GreenText(text string) string {
	return Colorize(Green, text)
}

func YellowText(text string) string {
	return Colorize(Yellow, text)
}

func BlueText(text string) string {
	return Colorize(Blue, text)
}

func CyanText(text string) string {
	return Colorize(Cyan, text)
}

func GrayText(text string) string {
	return Colorize(Gray, text)
}

func Error(message string) string {
	return BrightRedText("Error: ") + message
}

// Listing colors one disassembly line of the form "OFFSET MNEMONIC operands..."
func Listing(line string) string {
	if !colorEnabled {
		return line
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return line
	}

	parts := []string{CyanText(fields[0]), YellowText(fields[1])}
	for _, f := range fields[2:] {
		parts = append(parts, BlueText(f))
	}

	return strings.Join(parts, " ")
}
