// Package operations contains the object operations behind the client.
// Each operation lives in its own subpackage and talks to the store through
// a narrow interface that the gateway satisfies.
//
// Operations that move bytes register themselves in the transfer registry,
// report progress through it and stop when it cancels them.
package operations
