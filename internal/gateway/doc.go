// Package gateway wires the pollgate components together and runs them.
//
// A Gateway owns the SQLite store, the dedup ledger, the Telegram client
// and the conversation router. Depending on configuration it delivers
// updates one of two ways:
//
//   - webhook mode: registers a webhook with Telegram and serves
//     POST /webhook/{secret} until the context is canceled. The path
//     secret is the only authentication; a mismatch returns 404.
//   - longpoll mode: deletes any registered webhook and pulls updates
//     via getUpdates.
//
// Every update with an id passes through the dedup ledger before the bot
// sees it, so redeliveries (webhook retries, crash-replayed poll batches)
// are processed at most once within the retention window.
package gateway
