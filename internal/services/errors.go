// Package services defines the business logic for publishing newsletter
// issues and inspecting their delivery. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Publish validation errors. The texts are user-facing and returned verbatim
// by the HTTP layer.
var (
	// ErrTitleEmpty is returned when a publish request has an empty title.
	ErrTitleEmpty = errors.New("field `title` cannot be empty")

	// ErrTextContentEmpty is returned when a publish request has an empty
	// plain-text body.
	ErrTextContentEmpty = errors.New("field `text_content` cannot be empty")

	// ErrHTMLContentEmpty is returned when a publish request has an empty
	// HTML body.
	ErrHTMLContentEmpty = errors.New("field `html_content` cannot be empty")
)

// ErrIssueNotFound indicates that the requested newsletter issue does not
// exist.
var ErrIssueNotFound = errors.New("newsletter issue not found")
