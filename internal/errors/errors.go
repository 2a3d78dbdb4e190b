// Package errors provides centralized error handling for the catalog subsystem.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ErrorCategory classifies an error for handling and logging decisions.
type ErrorCategory string

// CategorizedError lets an error name its own category through wrapping.
type CategorizedError interface {
	error
	ErrorCategory() ErrorCategory
}

const (
	CategoryValidation    ErrorCategory = "validation"
	CategoryFileIO        ErrorCategory = "file-io"
	CategoryDatabase      ErrorCategory = "database"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryConnection    ErrorCategory = "connection"
	CategoryIntegrity     ErrorCategory = "integrity"
	CategoryTransient     ErrorCategory = "transient-io"
	CategoryTimeout       ErrorCategory = "timeout"
	CategoryCancellation  ErrorCategory = "cancellation"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryState         ErrorCategory = "state"
	CategorySystem        ErrorCategory = "system-resource"
	CategoryDiskUsage     ErrorCategory = "disk-usage"
	CategoryGeneric       ErrorCategory = "generic"
)

// Reporting priorities. An explicit priority overrides whatever the
// reporting hook would infer from the category.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is reported when no registered component matches the
// call stack.
const ComponentUnknown = "unknown"

// EnhancedError carries a category, an owning component, and structured
// context alongside the wrapped error.
type EnhancedError struct {
	Err       error          // wrapped cause
	component string         // owning component, filled in lazily
	Category  ErrorCategory  // classification, CategoryGeneric when unset
	Priority  string         // optional explicit reporting priority
	Context   map[string]any // structured key/value context
	Timestamp time.Time      // creation time
	reported  bool           // whether the reporting hook has seen it
	mu        sync.RWMutex   // guards component/detected/reported
	detected  bool           // whether component detection already ran
}

// Error returns the wrapped error's message.
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap exposes the wrapped cause to errors.Is and errors.As.
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is matches two enhanced errors by category, and otherwise defers to
// the wrapped chain.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetComponent returns the owning component, running stack detection on
// first use if none was set explicitly.
func (ee *EnhancedError) GetComponent() string {
	ee.mu.RLock()
	if ee.detected || ee.component != "" {
		component := ee.component
		ee.mu.RUnlock()
		return component
	}
	ee.mu.RUnlock()

	ee.mu.Lock()
	defer ee.mu.Unlock()

	// Another goroutine may have run detection while we waited for the
	// write lock.
	if ee.component == "" && !ee.detected {
		ee.component = detectComponent()
		ee.detected = true
		if ee.component == "" {
			ee.component = ComponentUnknown
		}
	}

	return ee.component
}

// GetCategory returns the category as a plain string for log attributes.
func (ee *EnhancedError) GetCategory() string {
	return string(ee.Category)
}

// GetPriority returns the explicit priority, or "" when none was set.
func (ee *EnhancedError) GetPriority() string {
	return ee.Priority
}

// GetContext returns a copy of the context map, safe for the caller to
// mutate.
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	if ee.Context == nil {
		return nil
	}

	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// GetTimestamp returns when the error was built.
func (ee *EnhancedError) GetTimestamp() time.Time {
	return ee.Timestamp
}

// GetMessage returns the wrapped message, or "" for a nil cause.
func (ee *EnhancedError) GetMessage() string {
	if ee.Err != nil {
		return ee.Err.Error()
	}
	return ""
}

// MarkReported records that the reporting hook has handled this error.
func (ee *EnhancedError) MarkReported() {
	ee.mu.Lock()
	defer ee.mu.Unlock()
	ee.reported = true
}

// IsReported reports whether the reporting hook has handled this error.
func (ee *EnhancedError) IsReported() bool {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	return ee.reported
}

// ErrorBuilder assembles an EnhancedError step by step.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New starts building an enhanced error around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{
		err: err,
		// context allocates on first Context call
	}
}

// Newf starts building around a freshly formatted error.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component names the owning component, short-circuiting stack detection.
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category classifies the error being built.
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets an explicit reporting priority. Unknown names degrade to
// medium rather than failing the build.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	default:
		if priority != "" {
			eb.priority = PriorityMedium
		}
	}
	return eb
}

// Context attaches one structured key/value pair.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// ChecksumContext adds the offending path with expected and actual checksums,
// the context every integrity error must carry to be actionable.
func (eb *ErrorBuilder) ChecksumContext(path, expected, actual string) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context["path"] = path
	eb.context["expected_checksum"] = expected
	eb.context["actual_checksum"] = actual
	return eb
}

// Build finalizes the error and hands it to the reporting hook if one is
// installed.
func (eb *ErrorBuilder) Build() *EnhancedError {
	// With no reporting hook installed nothing reads the detected
	// component, so the stack walk can be skipped entirely.
	if !hasActiveReporting.Load() {
		ee := &EnhancedError{
			Err:       eb.err,
			component: eb.component,
			Category:  eb.category,
			Priority:  eb.priority,
			Context:   eb.context,
			Timestamp: time.Now(),
			detected:  eb.component != "",
		}
		if ee.component == "" {
			ee.component = ComponentUnknown
			ee.detected = true
		}
		if ee.Category == "" {
			ee.Category = CategoryGeneric
		}
		return ee
	}

	if eb.component == "" {
		eb.component = detectComponent()
	}
	if eb.category == "" {
		eb.category = detectCategory(eb.err)
	}

	ee := &EnhancedError{
		Err:       eb.err,
		component: eb.component,
		Category:  eb.category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
		detected:  true,
	}

	notifyReporter(ee)

	return ee
}

// Package-path patterns mapped to component names, consulted by stack
// detection.
var (
	componentRegistry = make(map[string]string)
	registryMutex     sync.RWMutex
)

// RegisterComponent maps a package path substring to a component name.
func RegisterComponent(packagePattern, componentName string) {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	componentRegistry[packagePattern] = componentName
}

func init() {
	RegisterComponent("conf", "configuration")
	RegisterComponent("datastore/repository", "datastore.repository")
	RegisterComponent("datastore/query", "datastore.query")
	RegisterComponent("datastore", "datastore")
	RegisterComponent("indexer", "indexer")
	RegisterComponent("audioinfo", "audioinfo")
	RegisterComponent("logging", "logging")
	RegisterComponent("cmd", "cli")
}

// quickComponentLookup resolves the component for one specific caller
// depth, or "" when that frame gives no answer.
func quickComponentLookup(depth int) string {
	pc, _, _, ok := runtime.Caller(depth)
	if !ok {
		return ""
	}

	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}

	funcName := fn.Name()

	// Frames inside this package never count as the owner.
	if strings.Contains(funcName, "github.com/syrinxlabs/syrinx/internal/errors") {
		return ""
	}

	return lookupComponent(funcName)
}

// detectComponent finds the owning component from the call stack.
func detectComponent() string {
	// Builders are usually 4-6 frames below the erroring code; wrapped
	// construction adds a couple more.
	for _, depth := range []int{4, 5, 6, 7} {
		if component := quickComponentLookup(depth); component != "" && component != ComponentUnknown {
			return component
		}
	}

	return detectComponentFull()
}

// detectComponentFull scans every frame when the fixed depths missed.
func detectComponentFull() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(2, pcs)

	if n == len(pcs) {
		pcs = make([]uintptr, 32)
		n = runtime.Callers(2, pcs)
	}

	for i := range n {
		fn := runtime.FuncForPC(pcs[i])
		if fn == nil {
			continue
		}

		funcName := fn.Name()

		if strings.Contains(funcName, "github.com/syrinxlabs/syrinx/internal/errors") {
			continue
		}

		if component := lookupComponent(funcName); component != ComponentUnknown {
			return component
		}
	}

	return ComponentUnknown
}

// lookupComponent matches a fully qualified function name against the
// registry, falling back to the bare package name.
func lookupComponent(funcName string) string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	for pattern, component := range componentRegistry {
		if strings.Contains(funcName, pattern) {
			return component
		}
	}

	parts := strings.Split(funcName, "/")
	if len(parts) > 0 {
		lastPart := parts[len(parts)-1]
		if dotIndex := strings.Index(lastPart, "."); dotIndex > 0 {
			return lastPart[:dotIndex]
		}
	}

	return ComponentUnknown
}

// detectCategory derives an error category from the error chain and message.
// Integrity wording is checked before validation wording so that checksum
// mismatches never degrade into the retryable-looking validation class.
func detectCategory(err error) ErrorCategory {
	var catErr CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr.ErrorCategory()
	}

	var enhErr *EnhancedError
	if stderrors.As(err, &enhErr) && enhErr.Category != "" {
		return enhErr.Category
	}

	errorMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errorMsg, "checksum") || strings.Contains(errorMsg, "corrupt") ||
		strings.Contains(errorMsg, "foreign key"):
		return CategoryIntegrity
	case strings.Contains(errorMsg, "database is locked") || strings.Contains(errorMsg, "database table is locked") ||
		strings.Contains(errorMsg, "busy"):
		return CategoryTransient
	case strings.Contains(errorMsg, "connection") || strings.Contains(errorMsg, "dial") ||
		strings.Contains(errorMsg, "unreachable"):
		return CategoryConnection
	case strings.Contains(errorMsg, "deadline exceeded") || strings.Contains(errorMsg, "timeout"):
		return CategoryTimeout
	case strings.Contains(errorMsg, "not found") || strings.Contains(errorMsg, "no such file"):
		return CategoryNotFound
	case strings.Contains(errorMsg, "invalid") || strings.Contains(errorMsg, "mismatch") ||
		strings.Contains(errorMsg, "validation"):
		return CategoryValidation
	case strings.Contains(errorMsg, "file") || strings.Contains(errorMsg, "read") ||
		strings.Contains(errorMsg, "open"):
		return CategoryFileIO
	}

	return CategoryGeneric
}

// Standard library re-exports, so callers need only this import.

// NewStd builds a plain text error, exactly like the stdlib errors.New.
func NewStd(text string) error {
	return stderrors.New(text)
}

// Is re-exports the stdlib errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As re-exports the stdlib errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap re-exports the stdlib errors.Unwrap.
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join re-exports the stdlib errors.Join.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// IsCategory reports whether err carries the given category anywhere in
// its chain.
func IsCategory(err error, category ErrorCategory) bool {
	var enhancedErr *EnhancedError
	return As(err, &enhancedErr) && enhancedErr.Category == category
}

// IsNotFound reports whether err is classified CategoryNotFound.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}

// IsRetryable reports whether an error belongs to the only class eligible for
// retry with backoff. Every other category fails loud on first occurrence.
func IsRetryable(err error) bool {
	return IsCategory(err, CategoryTransient)
}
