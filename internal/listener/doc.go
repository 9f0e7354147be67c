// Package listener supervises the per-device attendance polling tasks.
//
// The Manager owns one goroutine per enabled device. Each task runs a
// small state machine: establish a session, mark the device listening,
// then poll its attendance log on a fixed interval, forwarding records
// through the relay and clearing the on-board log after each batch. A
// connectivity failure mid-poll moves the task into a reconnect loop that
// backs off and retries until it succeeds or a stop is requested; it never
// self-terminates while the fleet is in the started state. A failure to
// establish the initial session terminates that task (a fresh start-all
// is required), mirroring the distinction between "never came up" and
// "dropped mid-flight".
//
// The read-then-clear cycle is not atomic across a crash: a crash between
// the attendance read and the relay calls loses that batch, and a crash
// between relaying and clearing duplicates it on the next poll. This is a
// deliberate trade for a device protocol with no acknowledged consume.
//
// The Aggregator mirrors every transition into a point-in-time status view
// that the API reads concurrently, and the Manager's per-device gate
// serialises ad-hoc administrative sessions with the listener's own use of
// its session, since the terminals do not tolerate concurrent clients well.
package listener
