// Package forms registers the site's form definitions with the core registry.
// Import this package for its side effect.
package forms

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"github.com/JonMunkholm/shipbroker/internal/core"
)

//go:embed definitions/*.yaml
var definitions embed.FS

func init() {
	defs, err := Load(definitions)
	if err != nil {
		panic(err)
	}
	for _, def := range defs {
		core.Register(def)
	}
}

// Load parses every *.yaml file in the definitions directory of fsys.
func Load(fsys fs.FS) ([]core.Definition, error) {
	names, err := fs.Glob(fsys, "definitions/*.yaml")
	if err != nil {
		return nil, err
	}

	defs := make([]core.Definition, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		def, err := core.ParseDefinition(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path.Base(name), err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}
