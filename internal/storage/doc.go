// Package storage is the persistence layer shared by the notification
// worker and the (out-of-repo) API processes.
//
// It currently holds:
//   - Notification settings (per-user preferences)
//   - Notification records (digest/bundle state machine)
//   - Activity events and the follow graph (read-mostly for the worker)
package storage
