// Package postgres implements the store using pgx/v5 with raw SQL.
//
// Conditional writes compare the version column in the WHERE clause and
// treat zero affected rows as a lost race. A partial unique index keeps at
// most one pending deletion request per employee. Migrations are embedded
// SQL files applied in filename order and tracked in a migrations table.
package postgres
