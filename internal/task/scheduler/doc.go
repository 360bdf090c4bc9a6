// Package scheduler turns schedule definitions into task-engine work.
//
// It owns no workers. Cron entries and one-time timers only enqueue
// engine.Task values; execution, retries and history live in package engine.
package scheduler
