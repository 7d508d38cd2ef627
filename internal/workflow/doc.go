// Package workflow drives queued jobs through the recognition and
// transfer stages.
//
// The manager polls the job store for work, leases one job at a time,
// and runs the stage registered for the job's status. A heartbeat
// goroutine keeps the lease fresh while a stage executes; jobs whose
// heartbeats go stale (a crashed daemon) are reclaimed back to pending
// on the next loop. Stage failures are classified through the services
// error taxonomy: validation-class failures park the job for review,
// everything else marks it failed for retry.
package workflow
