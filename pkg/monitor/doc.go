// Monitor follows the Service Worker lifecycle of a page and drives the
// user-facing update flow: a worker that finishes installing while another
// is active is reported to the host as the next version, the host's "update
// now" action posts SKIP_WAITING to it, and its activation reloads the page
// exactly once.
//
// The very first installation on a device has no active worker to replace and
// is observed silently. The Monitor holds only observational references into
// the platform's registration; it owns nothing but its subscriptions.
package monitor
