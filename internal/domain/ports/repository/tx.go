package repository

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories accept a nil Tx and then run outside a transaction.
type Tx interface{}

var NoTX Tx
