// Package workspace describes the packages of a multi-package repository and
// loads them from disk.
package workspace

import "slices"

// Package is one independent unit of work in a workspace.
//
// Name is the package's identity. Location is the absolute or root-relative
// directory holding the package. Dependencies only lists other packages of
// the same workspace.
type Package struct {
	Name         string
	Version      string
	Location     string
	Dependencies []string
	Scripts      map[string]string
}

// HasScript reports whether the package defines the named script.
func (p Package) HasScript(name string) bool {
	_, ok := p.Scripts[name]
	return ok
}

// DependsOn reports whether name is a direct workspace dependency of p.
func (p Package) DependsOn(name string) bool {
	return slices.Contains(p.Dependencies, name)
}

// Names returns the names of pkgs in order.
func Names(pkgs []Package) []string {
	names := make([]string, len(pkgs))
	for i, p := range pkgs {
		names[i] = p.Name
	}
	return names
}

// Filter returns the packages whose name is in names, keeping the order of
// pkgs. With no names it returns pkgs unchanged.
func Filter(pkgs []Package, names ...string) []Package {
	if len(names) == 0 {
		return pkgs
	}
	out := make([]Package, 0, len(names))
	for _, p := range pkgs {
		if slices.Contains(names, p.Name) {
			out = append(out, p)
		}
	}
	return out
}
