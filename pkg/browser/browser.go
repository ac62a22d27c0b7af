// Package browser defines the control surface the executor drives and a
// chromedp-backed implementation of it. Session provisioning beyond
// launching or attaching to one Chrome instance is out of scope.
package browser

import (
	"context"
	"time"
)

// Surface is the abstract browser collaborator contract. Every method
// failure is collaborator-defined; the executor treats them uniformly as
// operation failure.
type Surface interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Scroll(ctx context.Context, selector string) error
	ExtractHTML(ctx context.Context, selector string) (string, error)

	// EvaluateScript runs source in the page and returns its JSON-encoded
	// value. The timeout bounds how long the page may take; script
	// evaluation is the one call whose deadline this engine owns.
	EvaluateScript(ctx context.Context, source string, timeout time.Duration) (string, error)
}
