package callgraph

import (
	"io"
	"log"
	"os"
)

var (
	// Verbose controls call graph logging
	Verbose = os.Getenv("SYMFLOW_VERBOSE") == "1"
	logger  = log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
)

// SetVerbose enables or disables verbose call graph logging
func SetVerbose(enabled bool) {
	Verbose = enabled
}

// SetOutput redirects logger output (useful for testing)
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func debugf(format string, args ...interface{}) {
	if Verbose {
		logger.Printf("[DEBUG] [callgraph] "+format, args...)
	}
}
