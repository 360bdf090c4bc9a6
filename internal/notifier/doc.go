// Package notifier tells operators about schedule lifecycle events.
//
// It subscribes to schedule.* events on the bus and sends one short message
// per event to every owner chat. Sends share a token bucket so a burst of
// events cannot trip the messaging API's flood limits.
package notifier
