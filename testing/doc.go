// Package testing provides test utilities for patchwork.
//
// The helpers start an in-process NATS server with JetStream so the object
// store writer can be exercised without external infrastructure, similar in
// spirit to net/http/httptest.
//
// Example usage:
//
//	import (
//	    "testing"
//	    pwtest "github.com/arloliu/patchwork/testing"
//	)
//
//	func TestMyWriter(t *testing.T) {
//	    _, nc := pwtest.StartEmbeddedNATS(t)
//	    store := pwtest.CreateObjectStore(t, nc, "predictions")
//	    // Use store for your tests
//	}
package testing
