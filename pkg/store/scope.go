package store

import (
	"fmt"
	"strings"
)

// Scope is the namespace boundary for stored keys. It is a closed set: the
// only values are Project and Flow.
type Scope interface {
	String() string
	deriveKey(prefix, flowID, key string) string
}

type projectScope struct{}

func (projectScope) String() string { return "PROJECT" }

func (projectScope) deriveKey(prefix, _ string, key string) string {
	return prefix + key
}

type flowScope struct{}

func (flowScope) String() string { return "FLOW" }

func (flowScope) deriveKey(prefix, flowID, key string) string {
	return prefix + "flow_" + flowID + "/" + key
}

var (
	// Project shares a key across every flow in the project.
	Project Scope = projectScope{}
	// Flow isolates a key to one flow lineage. It is the default scope.
	Flow Scope = flowScope{}
)

// ParseScope maps "PROJECT" or "FLOW" (any case) to a Scope. An empty string
// yields Flow.
func ParseScope(name string) (Scope, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "":
		return Flow, nil
	case "FLOW":
		return Flow, nil
	case "PROJECT":
		return Project, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidScope, name)
	}
}

// DeriveKey builds the fully qualified key sent to the remote store.
func DeriveKey(prefix string, scope Scope, flowID, key string) (string, error) {
	if scope == nil {
		return "", ErrInvalidScope
	}
	return scope.deriveKey(prefix, flowID, key), nil
}

func resolveScope(scopes []Scope) (Scope, error) {
	switch len(scopes) {
	case 0:
		return Flow, nil
	case 1:
		if scopes[0] == nil {
			return nil, ErrInvalidScope
		}
		return scopes[0], nil
	default:
		return nil, fmt.Errorf("%w: expected at most one scope, got %d", ErrInvalidScope, len(scopes))
	}
}
