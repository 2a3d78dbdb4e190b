//go:build ruleguard

// Package gorules defines custom linter rules enforced via ruleguard.
// They encode error-handling conventions the catalog code relies on.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// SentinelComparison detects direct equality checks against error
// sentinels. Wrapped errors (and every categorized error in this
// codebase wraps its cause) never compare equal to the sentinel, so
// these checks silently stop matching.
//
// Old pattern:
//
//	if err == gorm.ErrRecordNotFound { ... }
//
// New pattern:
//
//	if errors.Is(err, gorm.ErrRecordNotFound) { ... }
func SentinelComparison(m dsl.Matcher) {
	m.Import("gorm.io/gorm")

	m.Match(
		`$err == gorm.ErrRecordNotFound`,
		`gorm.ErrRecordNotFound == $err`,
	).
		Where(m["err"].Type.Is("error")).
		Report("use errors.Is($err, gorm.ErrRecordNotFound); wrapped errors never compare equal").
		Suggest("errors.Is($err, gorm.ErrRecordNotFound)")

	m.Match(
		`$err != gorm.ErrRecordNotFound`,
		`gorm.ErrRecordNotFound != $err`,
	).
		Where(m["err"].Type.Is("error")).
		Report("use !errors.Is($err, gorm.ErrRecordNotFound); wrapped errors never compare equal").
		Suggest("!errors.Is($err, gorm.ErrRecordNotFound)")

	m.Match(
		`$err == io.EOF`,
		`$err != io.EOF`,
	).
		Where(m["err"].Type.Is("error")).
		Report("use errors.Is($err, io.EOF); wrapped errors never compare equal")
}

// ContextTODO detects context.TODO() outside of generated code. Every
// blocking operation here either receives the caller's context or is
// explicitly fire-and-forget, in which case context.Background() states
// that intent instead of deferring it.
//
// Old pattern:
//
//	slog.Log(context.TODO(), level, msg)
//
// New pattern:
//
//	slog.Log(ctx, level, msg)        // when a context is in scope
//	slog.Log(context.Background(), level, msg)
func ContextTODO(m dsl.Matcher) {
	m.Match(`context.TODO()`).
		Report("thread the caller's context, or use context.Background() for fire-and-forget calls")
}
