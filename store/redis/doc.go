// Package redis implements store.Store using go-redis. Items and deletion
// requests are stored as Hashes. Pending items live in a Sorted Set scored
// by their next retry time, claimed items in one scored by claim time, and
// pending deletion requests in one scored by their scheduled date.
//
// Every write that changes an entity runs as a Lua script that checks the
// stored version and updates the indexes in the same step, so the CAS
// semantics match the SQL backends. A Hash of employee to request ID
// enforces one pending deletion request per employee.
//
// The caller owns the client lifecycle:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis
