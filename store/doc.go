// Package store groups the persistence backends for the job store.
//
// Each backend implements [seatwatch/job.Store], the single source of
// truth for job status.
//
//   - store/memory — in-memory store for development and testing
//   - store/bun — PostgreSQL backend using the Bun ORM
//
// Usage:
//
//	db := bun.NewDB(sqldb, pgdialect.New())
//	s := bunstore.New(db)
//	if err := s.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package store
