// Package worker runs voice agent jobs against a room server. A Worker owns
// the process lifecycle: it prewarms shared resources once, launches one job
// per room, tracks active jobs for cancellation and waits for them to drain
// on shutdown.
//
// Each job receives a JobContext with the room connection, a job-scoped
// logger and ordered shutdown callbacks. Shutdown runs every registered
// callback exactly once, in registration order, recovering from panics and
// logging failures so a broken hook never prevents later hooks from running.
package worker
