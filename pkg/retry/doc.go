// Package retry provides a bounded retry policy shared by every level of a
// run: re-reading a stale page element, re-fetching an image after a transport
// failure, and re-running the whole navigation and extraction pipeline.
//
// Basic usage:
//
//	policy := retry.Constant("fetch", 3, 2*time.Second).WithLogger(log)
//	data, err := retry.DoWithResult(ctx, policy, func(ctx context.Context, attempt int) ([]byte, error) {
//		return client.Fetch(ctx, url)
//	})
//
// Errors typed as transient_ui or transport are retried by DefaultRetryIf;
// http_status, io and location_not_found are terminal. Context cancellation
// always stops the loop. When every attempt fails Do returns an
// *ExhaustedError wrapping the last failure.
package retry
