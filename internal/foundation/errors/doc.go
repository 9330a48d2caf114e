// Package errors provides classified error primitives used across loaderbuild.
//
// A ClassifiedError carries a category (config, registry, enumeration, compile,
// write, ...), a severity and a retry hint. Errors are created with the fluent
// builder:
//
//	err := errors.NewError(errors.CategoryRegistry, "manifest entry has no buildfile").
//		WithContext("bundle", bundleName).
//		Build()
//
// The orchestrator never wraps collaborator failures in a ClassifiedError; callers
// compare those errors by identity. Classification is used at the edges
// (configuration, manifests, filesystem collaborators, daemon) and by the CLI
// adapter to pick an exit code.
package errors
