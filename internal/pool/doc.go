// Package pool runs the fixed set of workers that execute queued jobs.
//
// Each worker owns one job end to end: dequeue, mark running, invoke the
// engine, resolve the cache flight, record the terminal state. Engine
// failures are classified as retryable or fatal; retryable failures requeue
// with exponential backoff until the attempt budget runs out. A panic inside
// the engine terminates only that job. Executions have a wall-clock budget;
// on expiry the job fails and the worker moves on, discarding whatever the
// engine eventually returns.
package pool
