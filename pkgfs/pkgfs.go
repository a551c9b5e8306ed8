// Package pkgfs reads and writes files relative to a package's directory.
package pkgfs

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/utkarsh5026/pkgiter/workspace"
)

const filePerm = 0o644

// Path joins rel onto pkg's location.
func Path(pkg workspace.Package, rel string) string {
	return filepath.Join(pkg.Location, rel)
}

// ReadFile returns the contents of rel inside pkg.
func ReadFile(fsys afero.Fs, pkg workspace.Package, rel string) ([]byte, error) {
	data, err := afero.ReadFile(fsys, Path(pkg, rel))
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", pkg.Name, rel, err)
	}
	return data, nil
}

// ReadJSON decodes rel inside pkg into v.
func ReadJSON(fsys afero.Fs, pkg workspace.Package, rel string, v any) error {
	data, err := ReadFile(fsys, pkg, rel)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: decode %s: %w", pkg.Name, rel, err)
	}
	return nil
}

// WriteFile writes content to rel inside pkg. Byte slices and strings are
// written as is; any other value is encoded as JSON indented by two spaces
// and ending in a newline.
func WriteFile(fsys afero.Fs, pkg workspace.Package, rel string, content any) error {
	var data []byte
	switch c := content.(type) {
	case []byte:
		data = c
	case string:
		data = []byte(c)
	default:
		encoded, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return fmt.Errorf("%s: encode %s: %w", pkg.Name, rel, err)
		}
		data = append(encoded, '\n')
	}

	if err := afero.WriteFile(fsys, Path(pkg, rel), data, filePerm); err != nil {
		return fmt.Errorf("%s: write %s: %w", pkg.Name, rel, err)
	}
	return nil
}
