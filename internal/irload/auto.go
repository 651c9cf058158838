package irload

import (
	"fmt"
	"os"
	"strings"

	"github.com/dkarev/symflow/internal/ir"
)

// Auto loads IR from path by shape: a .json file is wire-format IR from a
// frontend, a .go file parses directly, and a directory loads as Go
// packages.
func Auto(path string) (*ir.Graph, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadGoPackages(path)
	}
	switch {
	case strings.HasSuffix(path, ".json"):
		return LoadJSONFile(path)
	case strings.HasSuffix(path, ".go"):
		return LoadGoFiles(path)
	}
	return nil, fmt.Errorf("unsupported input %s: want .json, .go, or a directory", path)
}
