// Package synchronizer runs account passes against Plaid and the ledger.
//
// A pass for one account fetches item info, optionally balances, then every
// transaction of the window. Only when all remote calls succeed does it
// write: item info, balance snapshots, then the reconcile plan, all inside
// one storage transaction. Remote errors are kept on the account's Result
// and the run moves on to the next account; storage errors abort the run.
//
// # Components
//
//   - Service: SyncAccount, Run and Trigger (one run at a time, shared by
//     concurrent callers).
//   - Report: text, JSON and YAML rendering of a run, including stale item
//     warnings.
//   - Exporter: uploads reports to object storage.
//   - Notifier: emails the text report over SMTP.
//   - Handler / Feature: the /sync HTTP routes.
package synchronizer
