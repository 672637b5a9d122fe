// Package llm provides the generation provider used for cloud PDF extraction
// and question answering.
//
// Calls pass through the shared ratelimit.Gate and a gobreaker circuit
// breaker. Provider errors are classified onto types.ErrTransientProvider and
// types.ErrAuth with ClassifyError, so callers decide retry and abort with
// errors.Is.
package llm
