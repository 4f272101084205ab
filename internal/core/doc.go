// Package core validates flat-file listing exports against a schema version.
//
// The package holds all domain logic independent of any transport layer. It
// can be used by the web handlers, a CLI, or tests without modification.
//
// # Pipeline
//
// A file goes through these stages:
//
//  1. [Decoder] turns bytes into text with the first candidate encoding that
//     decodes every byte.
//  2. [SplitLines] cuts the text into numbered lines; blank lines are
//     skipped without renumbering the rest.
//  3. Pass 1 gathers whole-file facts: [AnalyzeStructure] classifies the
//     token counts into a [Regime] and [BuildDuplicateIndex] records every
//     line using each business key.
//  4. Pass 2 runs [RowValidator.ValidateRow] on each line: structure,
//     quoting, duplicates, [NormalizeRow], then [FieldValidator.Check] per
//     rank.
//
// [FileValidator] drives both passes and returns a [Report]. Pass 2 may run
// on several goroutines ([WithWorkers]); findings keep file order.
//
// # Findings and Errors
//
// Data problems never become Go errors. Each is a [Finding] with a code
// (STR, QUO, DUP, VAL, ALN) listed in error_messages.go. Only conditions
// that prevent any report are returned as errors: undecodable input,
// schema errors, empty or oversize uploads, and context cancellation.
// [MapError] turns those into user messages with support codes.
//
// # Service
//
// [Service] wraps the engine for the HTTP layer: it bounds concurrent runs
// with an [UploadLimiter], caches one FileValidator per schema version and
// records each [Run] in a [RunStore].
package core
