// Package core assembles the subsystems into one running service.
//
// New wires the registry, scheduler, cache, worker pool, event hub, batch
// coordinator, and optional history archive together and installs the
// registry change hook that fans job updates out to all of them. Start and
// Stop manage the background goroutines; the remaining methods are the
// operation surface the IPC server and the HTTP API call into.
package core
