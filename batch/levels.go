// Package batch groups workspace packages into dependency levels and runs
// those levels one after another.
package batch

import (
	"fmt"
	"strings"

	"github.com/utkarsh5026/pkgiter/workspace"
)

// CycleError reports packages whose dependencies can never be satisfied.
type CycleError struct {
	Packages []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle among packages: %s", strings.Join(e.Packages, ", "))
}

// Levels partitions pkgs into dependency-respecting levels: no package
// depends on a package in its own or a later level. Dependencies on packages
// outside pkgs are treated as satisfied. Within a level packages keep their
// input order.
func Levels(pkgs []workspace.Package) ([][]workspace.Package, error) {
	if len(pkgs) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(pkgs))
	for i, p := range pkgs {
		index[p.Name] = i
	}

	inDegree := make([]int, len(pkgs))
	dependents := make([][]int, len(pkgs))
	for i, p := range pkgs {
		for _, dep := range p.Dependencies {
			j, ok := index[dep]
			if !ok || j == i {
				continue
			}
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	var current []int
	for i := range pkgs {
		if inDegree[i] == 0 {
			current = append(current, i)
		}
	}

	var levels [][]workspace.Package
	placed := 0
	for len(current) > 0 {
		level := make([]workspace.Package, len(current))
		for k, i := range current {
			level[k] = pkgs[i]
		}
		levels = append(levels, level)
		placed += len(current)

		ready := make([]bool, len(pkgs))
		for _, i := range current {
			for _, d := range dependents[i] {
				inDegree[d]--
				if inDegree[d] == 0 {
					ready[d] = true
				}
			}
		}

		current = current[:0:0]
		for i, ok := range ready {
			if ok {
				current = append(current, i)
			}
		}
	}

	if placed != len(pkgs) {
		var stuck []string
		for i, deg := range inDegree {
			if deg > 0 {
				stuck = append(stuck, pkgs[i].Name)
			}
		}
		return nil, &CycleError{Packages: stuck}
	}
	return levels, nil
}
