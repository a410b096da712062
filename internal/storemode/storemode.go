// Package storemode describes whether the deployment sells one brand or many.
//
// The mode is resolved once at startup and injected wherever behaviour depends
// on it; nothing reads it from the environment after that.
package storemode

import (
	"fmt"
	"strings"
)

const (
	NameSingle = "single"
	NameMulti  = "multi"
)

// Mode is either Single or Multi.
type Mode interface {
	Name() string
	isMode()
}

// Single is a one-brand shop. Every product belongs to DefaultBrandID.
type Single struct {
	DefaultBrandID string
}

// Multi is a marketplace. Every product must name its brand.
type Multi struct{}

func (Single) Name() string { return NameSingle }
func (Multi) Name() string  { return NameMulti }

func (Single) isMode() {}
func (Multi) isMode()  {}

// Parse maps a configuration value to a Mode. An empty value means single.
func Parse(name, defaultBrandID string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameSingle:
		return Single{DefaultBrandID: strings.TrimSpace(defaultBrandID)}, nil
	case NameMulti:
		return Multi{}, nil
	default:
		return nil, fmt.Errorf("storemode: unknown store mode %q", name)
	}
}

// BrandFieldVisible reports whether the admin form lets the operator pick a brand.
func BrandFieldVisible(m Mode) bool {
	_, ok := m.(Multi)
	return ok
}
