// Package intake is the admission boundary for new work.
//
// Every submission is validated and rate-limited before anything else sees
// it. Admitted work receives a durable job id before the call returns, and
// the gateway consults the content cache before touching the queue: a
// committed result completes the job immediately, and content identical to
// an in-flight execution attaches to that flight instead of running twice.
// Only genuinely new content competes for queue capacity.
package intake
