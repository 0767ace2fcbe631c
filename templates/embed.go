// Package templates ships the default notification email templates.
package templates

import "embed"

// FS holds verify_email.html, trip_dates_modified.html and pending_request.html.
//
//go:embed *.html
var FS embed.FS
