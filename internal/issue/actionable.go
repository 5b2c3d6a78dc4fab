// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
)

type (
	// ActionableError is an error annotated with what dev was doing, on which
	// project path, file or image, and what the user can do about it.
	//
	// Build one with the ErrorContext builder:
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("look up project").
	//		WithResource("//world/example.com:project_foo").
	//		WithSuggestion("Run 'dev list_projects //world/example.com' to see declared projects").
	//		WithIssue(issue.ProjectNotFoundId).
	//		Wrap(originalErr).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase such as "run build" or "load configuration".
		Operation string
		// Resource is the project path, file or image involved, if any.
		Resource string
		// Suggestions are one-line hints shown under the error.
		Suggestions []string
		// IssueID links the error to a catalog entry with longer guidance.
		IssueID Id
		Cause   error
	}

	// ErrorContext builds an ActionableError.
	ErrorContext struct {
		err ActionableError
	}
)

// NewErrorContext creates a new ErrorContext builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// Error implements the error interface:
// "<operation>[ <resource>]: <cause>".
func (e *ActionableError) Error() string {
	var msg strings.Builder
	msg.WriteString(e.Operation)
	if e.Resource != "" {
		msg.WriteString(" ")
		msg.WriteString(e.Resource)
	}
	if e.Cause != nil {
		msg.WriteString(": ")
		msg.WriteString(e.Cause.Error())
	}
	return msg.String()
}

// Unwrap returns the underlying cause error for use with errors.Is/As.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// WithOperation sets the operation being performed.
func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.err.Operation = op
	return c
}

// WithResource sets the project path, file or image involved.
func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.err.Resource = res
	return c
}

// WithSuggestion appends a hint. It may be called repeatedly.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.err.Suggestions = append(c.err.Suggestions, sug)
	return c
}

// WithIssue links the error to a catalog entry.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.err.IssueID = id
	return c
}

// Wrap sets the underlying cause.
func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.err.Cause = err
	return c
}

// BuildError returns the built error, or nil when no operation was set.
// The builder may be reused afterwards; built errors do not share state.
func (c *ErrorContext) BuildError() error {
	if c.err.Operation == "" {
		return nil
	}
	ae := c.err
	ae.Suggestions = append([]string(nil), c.err.Suggestions...)
	return &ae
}

// actionableChain returns every ActionableError in err's chain, outermost
// first.
func actionableChain(err error) []*ActionableError {
	var chain []*ActionableError
	for err != nil {
		var ae *ActionableError
		if !errors.As(err, &ae) {
			break
		}
		chain = append(chain, ae)
		err = ae.Cause
	}
	return chain
}

// IssueFor returns the catalog entry linked to the outermost ActionableError
// in err's chain that carries one.
func IssueFor(err error) *Issue {
	for _, ae := range actionableChain(err) {
		if ae.IssueID != 0 {
			return Get(ae.IssueID)
		}
	}
	return nil
}

// Suggestions collects the hints of every ActionableError in err's chain,
// outermost first, without duplicates.
func Suggestions(err error) []string {
	var out []string
	seen := make(map[string]bool)
	for _, ae := range actionableChain(err) {
		for _, s := range ae.Suggestions {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
