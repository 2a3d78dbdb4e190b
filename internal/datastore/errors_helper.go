// Package datastore - constructors for the error classes the storage
// layer reports. Repositories return typed sentinels and raw engine
// errors; these helpers are for the datastore layer itself, where the
// category decides retry and escalation behavior.
package datastore

import (
	"fmt"
	"strings"

	"github.com/syrinxlabs/syrinx/internal/errors"
)

// dbError wraps a general database failure. Trailing arguments are
// key/value context pairs.
func dbError(err error, operation, priority string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	if priority != "" {
		builder = builder.Priority(priority)
	}

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// validationError reports a rejected input. Never retried, never escalated.
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// connectionError reports a failure to reach the database. The target is
// already redacted by the caller.
func connectionError(err error, operation, target string) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryConnection).
		Priority(errors.PriorityCritical).
		Context("operation", operation).
		Context("target", target).
		Build()
}

// resourceError reports an exhausted system resource. Running out of disk
// is the class an operator must act on immediately, so it escalates to
// critical under its own category.
func resourceError(err error, operation, resourceType string) error {
	priority := errors.PriorityMedium
	category := errors.CategorySystem

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "no space") ||
		strings.Contains(errStr, "database or disk is full") {
		priority = errors.PriorityCritical
		category = errors.CategoryDiskUsage
	}

	return errors.New(err).
		Component("datastore").
		Category(category).
		Priority(priority).
		Context("operation", operation).
		Context("resource_type", resourceType).
		Build()
}

// stateError reports a session or transaction lifecycle failure.
// Deadlocks and corruption wording raise the priority; the category
// stays non-retryable either way.
func stateError(err error, operation, stateType string) error {
	priority := errors.PriorityMedium
	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "deadlock") ||
		strings.Contains(errStr, "corrupt") ||
		strings.Contains(errStr, "malformed") {
		priority = errors.PriorityHigh
	}

	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryState).
		Priority(priority).
		Context("operation", operation).
		Context("state_type", stateType).
		Build()
}

// transientError reports a temporary lock condition. CategoryTransient is
// the only category the retry helper will act on.
func transientError(err error, operation string, attempt int) error {
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryTransient).
		Context("operation", operation).
		Context("attempt", attempt).
		Build()
}

// criticalError reports a failure that leaves the store unusable, such as
// a failed migration or on-disk corruption. Trailing arguments are
// key/value context pairs.
func criticalError(err error, operation, reason string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Priority(errors.PriorityCritical).
		Context("operation", operation).
		Context("critical_reason", reason)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}
