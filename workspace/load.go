package workspace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the workspace manifest looked up in the root directory.
const ManifestFile = "workspace.yaml"

// DefaultPackageGlob is used when the manifest is missing or lists no globs.
const DefaultPackageGlob = "packages/*"

// ErrDuplicatePackage is returned when two directories declare the same
// package name.
var ErrDuplicatePackage = errors.New("duplicate package name")

// Manifest is the decoded workspace.yaml.
type Manifest struct {
	Packages []string `yaml:"packages"`
}

type packageJSON struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Scripts              map[string]string `json:"scripts"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
}

// ReadManifest decodes the manifest in root. A missing manifest yields the
// default layout.
func ReadManifest(fsys afero.Fs, root string) (Manifest, error) {
	data, err := afero.ReadFile(fsys, filepath.Join(root, ManifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Manifest{Packages: []string{DefaultPackageGlob}}, nil
		}
		return Manifest{}, fmt.Errorf("workspace: read manifest: %w", err)
	}

	var m Manifest
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Manifest{}, fmt.Errorf("workspace: decode manifest: %w", err)
		}
	}
	if len(m.Packages) == 0 {
		m.Packages = []string{DefaultPackageGlob}
	}
	return m, nil
}

// Load discovers every package of the workspace rooted at root.
//
// Each manifest glob is matched against directories under root; a directory
// is a package when it holds a package.json with a name. Dependencies are
// narrowed to names of other workspace packages. The result is sorted by
// package name.
func Load(fsys afero.Fs, root string) ([]Package, error) {
	manifest, err := ReadManifest(fsys, root)
	if err != nil {
		return nil, err
	}

	seen := map[string]string{}
	var raw []packageJSON
	var locations []string

	for _, pattern := range manifest.Packages {
		matches, err := afero.Glob(fsys, filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("workspace: glob %q: %w", pattern, err)
		}
		sort.Strings(matches)

		for _, dir := range matches {
			pj, ok, err := readPackageJSON(fsys, dir)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if prev, dup := seen[pj.Name]; dup {
				if prev == dir {
					continue
				}
				return nil, fmt.Errorf("workspace: %w: %s in %s and %s", ErrDuplicatePackage, pj.Name, prev, dir)
			}
			seen[pj.Name] = dir
			raw = append(raw, pj)
			locations = append(locations, dir)
		}
	}

	pkgs := make([]Package, len(raw))
	for i, pj := range raw {
		pkgs[i] = Package{
			Name:         pj.Name,
			Version:      pj.Version,
			Location:     locations[i],
			Dependencies: localDependencies(pj, seen),
			Scripts:      pj.Scripts,
		}
	}

	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	return pkgs, nil
}

func readPackageJSON(fsys afero.Fs, dir string) (packageJSON, bool, error) {
	info, err := fsys.Stat(dir)
	if err != nil || !info.IsDir() {
		return packageJSON{}, false, nil
	}

	data, err := afero.ReadFile(fsys, filepath.Join(dir, "package.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return packageJSON{}, false, nil
		}
		return packageJSON{}, false, fmt.Errorf("workspace: read %s: %w", dir, err)
	}

	var pj packageJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return packageJSON{}, false, fmt.Errorf("workspace: decode %s/package.json: %w", dir, err)
	}
	if pj.Name == "" {
		return packageJSON{}, false, nil
	}
	return pj, true, nil
}

func localDependencies(pj packageJSON, local map[string]string) []string {
	set := map[string]struct{}{}
	for _, deps := range []map[string]string{
		pj.Dependencies,
		pj.DevDependencies,
		pj.PeerDependencies,
		pj.OptionalDependencies,
	} {
		for name := range deps {
			if _, ok := local[name]; ok && name != pj.Name {
				set[name] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
