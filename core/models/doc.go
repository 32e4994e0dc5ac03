// Package models holds the value types shared by the remote client, the
// reconciler and the ledger: transactions, balance snapshots and item
// metadata, each keeping its original payload for forward compatibility.
package models
