// Package repository provides data access interfaces and PostgreSQL
// implementations for the generation service.
//
// Repositories accept the DBTX interface so they can run against a connection
// pool or inside a transaction:
//
//	db, _ := database.New(ctx, cfg, logger)
//	sourceRepo := repository.NewPgSourceRepository(db)
//	jobRepo := repository.NewPgJobRepository(db)
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    txRepo := repository.NewPgJobRepository(tx)
//	    return txRepo.Create(ctx, job)
//	})
//
// All methods return domain-specific errors from the domain package; database
// errors are wrapped with fmt.Errorf and %w.
package repository

import (
	"github.com/sadiq-codes/genpaper-sub003/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults clamps limit to [1, maxFilterLimit] and ensures
// offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
