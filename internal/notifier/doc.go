// Package notifier delivers chat notifications on a best-effort basis.
//
// A Notify call makes at most one delivery attempt through a
// transport.Sender. Failures are logged and handed back as *NotifyError
// for bookkeeping; they are never meant to stop the caller.
//
// Sends are paced by a token bucket so a burst of failures cannot flood
// the chat, and the last delivered texts are kept in a small in-memory
// history for the health endpoint.
package notifier
