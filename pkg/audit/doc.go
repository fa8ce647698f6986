// Package audit records terminal gateway decisions (requests the gateway
// rejected or failed itself) in a local SQLite database.
//
// Recording is asynchronous and strictly best-effort: a full buffer drops
// the record, a broken database logs an error, and neither ever affects
// the client response. A cron-scheduled pruner enforces the retention
// window.
package audit
