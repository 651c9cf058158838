package taint

import (
	"io"
	"log"
	"os"
)

var (
	// Verbose controls taint analysis logging
	Verbose = os.Getenv("SYMFLOW_VERBOSE") == "1"
	logger  = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
)

// SetVerbose enables or disables verbose taint logging
func SetVerbose(enabled bool) {
	Verbose = enabled
}

// SetOutput redirects logger output (useful for testing)
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func debugf(format string, args ...interface{}) {
	if Verbose {
		logger.Printf("[DEBUG] [taint] "+format, args...)
	}
}

func infof(format string, args ...interface{}) {
	if Verbose {
		logger.Printf("[INFO] [taint] "+format, args...)
	}
}

func warnf(format string, args ...interface{}) {
	if Verbose {
		logger.Printf("[WARN] [taint] "+format, args...)
	}
}
