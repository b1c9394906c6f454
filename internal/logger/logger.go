package logger

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Init initializes the logger
func Init(debug, noColor bool) {
	InitWriter(os.Stderr, debug, noColor)
}

// InitWriter initializes the logger writing to w
func InitWriter(w io.Writer, debug, noColor bool) {
	log.SetDefault(log.NewWithOptions(io.MultiWriter(w),
		log.Options{
			ReportCaller:    debug,
			ReportTimestamp: false, // program output is interleaved on stdout; timestamps only add noise
			TimeFormat:      time.RFC3339,
			Prefix:          "STACKVM",
		}))

	log.SetLevel(log.DebugLevel)
	if !debug {
		log.SetLevel(log.WarnLevel)
	}

	log.SetColorProfile(termenv.ANSI256)
	if noColor {
		log.SetColorProfile(termenv.Ascii)
	}
}
