package browserfix

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/studytab/e2ekit"
)

// DeleteFlow drives the application's interface on page to delete res.
// The flow owns navigation, clicks, and confirmation dialogs; the page is
// created and closed around it.
type DeleteFlow func(ctx context.Context, page playwright.Page, res e2ekit.TrackedResource) error

// PageDeleter adapts a DeleteFlow to the cleanup tracker's UIDeleter. Each
// deletion runs on a fresh page in a fresh browser context, so one flow's
// cookies and storage never leak into the next.
type PageDeleter struct {
	fixture *Fixture
	flow    DeleteFlow
}

var _ e2ekit.UIDeleter = (*PageDeleter)(nil)

// NewPageDeleter creates a PageDeleter running flow against pages from
// fixture. Panics if either is nil, since a tracker configured with a
// half-built deleter would silently turn every UI cleanup into a failure.
func NewPageDeleter(fixture *Fixture, flow DeleteFlow) *PageDeleter {
	if fixture == nil {
		panic("browserfix: fixture must not be nil")
	}
	if flow == nil {
		panic("browserfix: flow must not be nil")
	}
	return &PageDeleter{fixture: fixture, flow: flow}
}

// DeleteResource opens a fresh page, runs the delete flow on it, and closes
// the context again. The context is checked before any browser work and
// forwarded to the flow; Playwright calls themselves are not context-aware,
// so a canceled context stops the flow only between its own steps.
func (d *PageDeleter) DeleteResource(ctx context.Context, res e2ekit.TrackedResource) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	browserCtx, err := d.fixture.NewContext()
	if err != nil {
		return err
	}
	defer func() {
		if err := browserCtx.Close(); err != nil {
			d.fixture.log().Warn("failed to close browser context", "err", err)
		}
	}()

	page, err := browserCtx.NewPage()
	if err != nil {
		return fmt.Errorf("new page: %w", err)
	}

	if err := d.flow(ctx, page, res); err != nil {
		return fmt.Errorf("ui delete %s %q: %w", res.Kind, res.ID, err)
	}
	return nil
}
