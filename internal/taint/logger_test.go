package taint

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestWarnfGatedByVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	was := Verbose
	defer func() {
		SetVerbose(was)
		SetOutput(os.Stderr)
	}()

	SetVerbose(false)
	warnf("cache disabled: %v", "no permission")
	if buf.Len() != 0 {
		t.Errorf("warnf wrote %q with Verbose off", buf.String())
	}

	SetVerbose(true)
	warnf("cache disabled: %v", "no permission")
	if !strings.Contains(buf.String(), "[WARN] [taint] cache disabled: no permission") {
		t.Errorf("warnf output = %q, want warn prefix and message", buf.String())
	}
}
