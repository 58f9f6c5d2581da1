// Package views builds presentation-ready projections of session state.
// Every function is pure and returns a fresh slice; inputs are never mutated.
package views

import (
	"slices"
	"strings"

	"github.com/smileynet/condatools/internal/conda"
)

// SortEnvironments orders envs with the base environment first and the rest
// by path in code-point order. With no connection info the input order is
// kept, so rendering never waits on a probe.
func SortEnvironments(envs []conda.Environment, info *conda.ConnectionInfo) []conda.Environment {
	out := slices.Clone(envs)
	if info == nil {
		return out
	}
	slices.SortStableFunc(out, func(a, b conda.Environment) int {
		aBase, bBase := conda.IsBase(a, info), conda.IsBase(b, info)
		switch {
		case aBase && !bBase:
			return -1
		case bBase && !aBase:
			return 1
		}
		return strings.Compare(a.Path, b.Path)
	})
	return out
}

// FilterPackages returns the packages whose name contains query, ignoring
// case. An empty query returns every package in the original order.
func FilterPackages(pkgs []conda.Package, query string) []conda.Package {
	if query == "" {
		return slices.Clone(pkgs)
	}
	q := strings.ToLower(query)
	out := make([]conda.Package, 0, len(pkgs))
	for _, p := range pkgs {
		if strings.Contains(strings.ToLower(p.Name), q) {
			out = append(out, p)
		}
	}
	return out
}

// EnvironmentSorter memoizes SortEnvironments on input equality.
// The zero value is ready to use.
type EnvironmentSorter struct {
	envs   []conda.Environment
	info   *conda.ConnectionInfo
	result []conda.Environment
	valid  bool
}

// Sorted returns SortEnvironments(envs, info), recomputing only when the
// inputs differ from the previous call.
func (m *EnvironmentSorter) Sorted(envs []conda.Environment, info *conda.ConnectionInfo) []conda.Environment {
	if m.valid && slices.Equal(m.envs, envs) && sameInfo(m.info, info) {
		return slices.Clone(m.result)
	}
	m.envs = slices.Clone(envs)
	m.info = copyInfo(info)
	m.result = SortEnvironments(envs, info)
	m.valid = true
	return slices.Clone(m.result)
}

// PackageFilter memoizes FilterPackages on input equality.
// The zero value is ready to use.
type PackageFilter struct {
	pkgs   []conda.Package
	query  string
	result []conda.Package
	valid  bool
}

// Filtered returns FilterPackages(pkgs, query), recomputing only when the
// inputs differ from the previous call.
func (m *PackageFilter) Filtered(pkgs []conda.Package, query string) []conda.Package {
	if m.valid && m.query == query && slices.Equal(m.pkgs, pkgs) {
		return slices.Clone(m.result)
	}
	m.pkgs = slices.Clone(pkgs)
	m.query = query
	m.result = FilterPackages(pkgs, query)
	m.valid = true
	return slices.Clone(m.result)
}

func sameInfo(a, b *conda.ConnectionInfo) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func copyInfo(info *conda.ConnectionInfo) *conda.ConnectionInfo {
	if info == nil {
		return nil
	}
	c := *info
	return &c
}
