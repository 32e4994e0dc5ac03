// Package plaid fetches item metadata, account balances and paginated
// transactions through the official plaid-go SDK and maps them onto the
// models the ledger stores, keeping each object's JSON as its raw payload.
//
// Failures come back as *Error. Kind separates the cases callers handle on
// their own (a login that needs refreshing, an item without usable accounts)
// from everything else. Rate limits, server errors and transport failures are
// retried with exponential backoff before they are returned.
package plaid
