// Package nvs implements session handles and typed access on top of a
// storage.Engine.
//
// # Sessions
//
// A caller opens a namespace by name and receives an opaque handle. Every
// later call presents that handle and a key; the handle is validated, the
// session's read-only flag is enforced for mutations, and the call is
// forwarded to the engine under the namespace's index.
//
//	c := nvs.New(nvs.WithLogger(logger))
//	if err := c.Init(ctx, storage.NewMemStore()); err != nil {
//	    return err
//	}
//	h, err := c.Open(ctx, "cfg", true)
//	if err != nil {
//	    return err
//	}
//	defer c.Close(ctx, h)
//
//	_ = c.SetU32(ctx, h, "boots", 42)
//	boots, _ := c.GetU32(ctx, h, "boots")
//
// # Variable-length values
//
// Strings and blobs are read with a two-phase protocol. Passing a nil buffer
// reports the stored size through length; a buffer shorter than the stored
// value fails with ErrInvalidLength and reports the required size:
//
//	var n int
//	_ = c.GetBlob(ctx, h, "cert", nil, &n)
//	buf := make([]byte, n)
//	_ = c.GetBlob(ctx, h, "cert", buf, &n)
//
// ReadString and ReadBlob wrap both phases in one call.
//
// # Concurrency
//
// A Context serializes every operation behind one lock. It is safe to share
// between goroutines; reads and writes exclude each other equally.
package nvs
