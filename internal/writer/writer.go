// Package writer hands produced loader metadata back to the bundle: server data
// is attached in memory, client data is persisted through a BundleWriter.
package writer

import (
	"context"

	"git.home.luguber.info/inful/loaderbuild/internal/models"
	"git.home.luguber.info/inful/loaderbuild/internal/retry"
)

// BundleWriter persists a JSON-serializable value at a path inside a bundle's
// output tree.
type BundleWriter interface {
	WriteFileInBundle(ctx context.Context, bundleName, dstPath string, jsonData any) error
}

// Func adapts a function to BundleWriter.
type Func func(ctx context.Context, bundleName, dstPath string, jsonData any) error

func (f Func) WriteFileInBundle(ctx context.Context, bundleName, dstPath string, jsonData any) error {
	return f(ctx, bundleName, dstPath, jsonData)
}

// AttachServer stores the server document on the bundle. It performs no I/O.
func AttachServer(b *models.Bundle, data *models.LoaderData) {
	if b.Loader == nil {
		b.Loader = &models.LoaderHolder{}
	}
	b.Loader.Server = data.JSON
}

// AttachClient writes the client document to dstPath inside the bundle. The
// writer's error is returned as-is.
func AttachClient(ctx context.Context, w BundleWriter, b *models.Bundle, dstPath string, data *models.LoaderData) error {
	return w.WriteFileInBundle(ctx, b.Name, dstPath, data.JSON)
}

// Tee writes to every writer in order and stops at the first error.
func Tee(writers ...BundleWriter) BundleWriter {
	return Func(func(ctx context.Context, bundleName, dstPath string, jsonData any) error {
		for _, w := range writers {
			if err := w.WriteFileInBundle(ctx, bundleName, dstPath, jsonData); err != nil {
				return err
			}
		}
		return nil
	})
}

// WithRetry retries retryable write errors of w under policy.
func WithRetry(w BundleWriter, policy retry.Policy) BundleWriter {
	return Func(func(ctx context.Context, bundleName, dstPath string, jsonData any) error {
		return policy.Do(ctx, func(ctx context.Context) error {
			return w.WriteFileInBundle(ctx, bundleName, dstPath, jsonData)
		})
	})
}
