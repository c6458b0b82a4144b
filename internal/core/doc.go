// Package core is the multi-step form engine behind the lead-capture pages.
//
// It has no HTTP, database or browser dependencies and can be driven by web
// handlers, the JSON API, the CLI, or tests without modification.
//
// # Definitions
//
// A [Definition] declares a form's ordered steps, its fields and their
// constraints, and how a finished draft maps onto a table row. Definitions
// are written in YAML and registered at init time (see package forms):
//
//	core.Register(def)
//	def, ok := core.Get("cargo_listing")
//
// # Form sessions
//
// A [Form] combines four parts:
//
//   - [Controller] owns the draft. SetField changes exactly one value.
//   - [Validator] checks fields, steps, and whole drafts. It is pure.
//   - [Sequencer] moves between steps. Advance requires the current step
//     to validate; Retreat is always allowed above step 0.
//   - [Pipeline] submits a validated draft: verification token, record
//     build, insert, notification.
//
// Submission state moves idle → pending → succeeded | failed, and a failed
// submission may be retried. While pending, the draft cannot change and a
// second submit is rejected with [ErrSubmissionPending].
//
// [Service] keeps the live sessions in memory, sweeps idle ones, and bounds
// concurrent submissions with a [SubmitLimiter].
//
// # Errors
//
// Technical errors are mapped to user-facing messages with [MapError]; see
// error_messages.go for the code reference.
package core
