// Package domain holds the value types shared by every stage of a bulk send
// run and the error taxonomy the CLI reports on.
//
// # Entities
//
//   - [OrderRecord]: one parsed input order (identifier, recipient, decimal amount)
//   - [TransferRequest]: the on-chain projection of an order, without its identifier
//   - [Transfer]: a transfer normalized to token base units
//   - [Batch]: a bounded, ordered group of transfers submitted in one call
//   - [AuditEntry]: a pre-submission journal record
//   - [GasPolicy]: the gas price and limit used for the whole run
//
// Nothing in this package talks to the network or the file system.
package domain
