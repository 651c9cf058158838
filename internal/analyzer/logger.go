package analyzer

import (
	"io"
	"log"
	"os"
)

var (
	// Verbose controls analyzer logging
	Verbose = os.Getenv("SYMFLOW_VERBOSE") == "1"
	logger  = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
)

// SetVerbose enables or disables verbose analyzer logging
func SetVerbose(enabled bool) {
	Verbose = enabled
}

// SetOutput redirects logger output (useful for testing)
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func infof(format string, args ...interface{}) {
	if Verbose {
		logger.Printf("[INFO] [analyzer] "+format, args...)
	}
}
