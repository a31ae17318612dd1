// Package glob matches names against glob patterns.
package glob

import (
	"fmt"

	"github.com/gobwas/glob"
)

type Glob interface {
	Match(name string) bool
	String() string
}

type globber struct {
	pattern string
	glob    glob.Glob
}

func MustCompile(pattern string, separators ...rune) Glob {
	g, err := Compile(pattern, separators...)
	if err != nil {
		panic(err)
	}

	return g
}

func Compile(pattern string, separators ...rune) (Glob, error) {
	g, err := glob.Compile(pattern, separators...)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
	}

	return &globber{pattern: pattern, glob: g}, nil
}

func (g *globber) Match(name string) bool {
	return g.glob.Match(name)
}

func (g *globber) String() string {
	return g.pattern
}

// Match returns whether the name matches the glob pattern, also considering
// one or several optionnal separator. An error is only returned if the pattern
// is invalid.
func Match(pattern, name string, separators ...rune) (bool, error) {
	g, err := Compile(pattern, separators...)
	if err != nil {
		return false, err
	}

	return g.Match(name), nil
}

// List is an allow list of patterns. An empty list allows every name.
type List []Glob

// NewList compiles all patterns with '/' as separator.
func NewList(patterns []string) (List, error) {
	list := List{}

	for _, pattern := range patterns {
		g, err := Compile(pattern, '/')
		if err != nil {
			return nil, err
		}

		list = append(list, g)
	}

	return list, nil
}

// Allow returns whether any pattern matches the name.
func (l List) Allow(name string) bool {
	if len(l) == 0 {
		return true
	}

	for _, g := range l {
		if g.Match(name) {
			return true
		}
	}

	return false
}

// Patterns returns the patterns of the list.
func (l List) Patterns() []string {
	patterns := make([]string, 0, len(l))

	for _, g := range l {
		patterns = append(patterns, g.String())
	}

	return patterns
}
