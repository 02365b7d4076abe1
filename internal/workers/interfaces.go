// Package workers provides abstractions for managing and running
// background workers in the application.
// It defines the Worker interface and a Workers aggregate that allows
// running and stopping multiple workers in a unified way.
package workers

// Worker is the interface that must be implemented by any background worker.
//
// Run starts the worker's execution; implementations are expected to spawn
// their goroutines internally and return. Stop requests a cooperative
// shutdown and blocks until the worker's goroutines have exited. Stop must
// be safe to call when the worker is not running.
type Worker interface {
	Run()
	Stop()
}
