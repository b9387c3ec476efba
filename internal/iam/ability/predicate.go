// Copyright (c) 2026 Kantan Labs. All rights reserved.

package ability

// # Policy Predicates

// Predicate is a declarative authorization requirement evaluated against a
// compiled [RuleSet].
//
// # Why a tagged variant?
//
// Handlers declare predicates as plain data (CanPerform, AllOf, AnyOf) and
// the guard evaluates them with [Evaluate] — a pure function. No reflection,
// no duck typing: the full set of predicate shapes is closed at compile time.
type Predicate interface {
	// evaluate is unexported to seal the variant set within this package.
	evaluate(set RuleSet, resource map[string]any) bool
}

// canPerform requires a single (action, subject) grant.
type canPerform struct {
	action  string
	subject string
}

func (p canPerform) evaluate(set RuleSet, resource map[string]any) bool {
	return set.Can(p.action, p.subject, resource)
}

// allOf requires every child predicate to hold.
type allOf struct {
	children []Predicate
}

func (p allOf) evaluate(set RuleSet, resource map[string]any) bool {
	for _, child := range p.children {
		if !child.evaluate(set, resource) {
			return false
		}
	}
	return true
}

// anyOf requires at least one child predicate to hold.
type anyOf struct {
	children []Predicate
}

func (p anyOf) evaluate(set RuleSet, resource map[string]any) bool {
	for _, child := range p.children {
		if child.evaluate(set, resource) {
			return true
		}
	}
	return false
}

// CanPerform declares that the user must hold a grant for action on subject.
func CanPerform(action, subject string) Predicate {
	return canPerform{action: action, subject: subject}
}

// AllOf declares that every child predicate must hold.
//
// An empty AllOf is vacuously true, matching the usual conjunction identity.
func AllOf(children ...Predicate) Predicate {
	return allOf{children: children}
}

// AnyOf declares that at least one child predicate must hold.
//
// An empty AnyOf is always false.
func AnyOf(children ...Predicate) Predicate {
	return anyOf{children: children}
}

// Evaluate applies a predicate tree to a compiled rule set and optional
// resource attributes (nil = class-level check).
func Evaluate(set RuleSet, predicate Predicate, resource map[string]any) bool {
	if predicate == nil {
		return true
	}
	return predicate.evaluate(set, resource)
}
