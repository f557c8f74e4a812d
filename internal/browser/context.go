// internal/browser/context.go
package browser

import "context"

// CombineContext creates a new context that is canceled when either
// parentCtx or secondaryCtx is canceled. Values (including the chromedp
// target) come from parentCtx. This keeps every browser operation bounded by
// both the session lifetime and the caller's per-step deadline.
func CombineContext(parentCtx, secondaryCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(parentCtx)

	go func() {
		select {
		case <-secondaryCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}
