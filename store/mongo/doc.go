// Package mongo implements store.Store using the official MongoDB Go
// driver (v2). Items and deletion requests live in their own collections
// keyed by TypeID. Conditional writes filter on the version field, and a
// partial unique index on employee_id keeps at most one pending deletion
// request per employee.
//
// The caller owns the client lifecycle; Close never disconnects it:
//
//	client, _ := mongo.Connect(options.Client().ApplyURI(uri))
//	store := mongostore.New(client.Database("timesheet"))
//	store.Migrate(ctx)
package mongo
