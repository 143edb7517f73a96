// Package queue schedules seat-check attempts.
//
// Jobs enter the queue with an attempt budget and a retry interval. The
// scheduler holds each entry until its run time, then pushes a Delivery
// onto a channel that the worker pool consumes. A token-bucket gate caps
// the global dispatch rate so bursts of due jobs do not flood the remote
// reservation site.
package queue
