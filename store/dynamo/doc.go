// Package dynamo implements store.Store on Amazon DynamoDB with the AWS SDK
// for Go v2.
//
// Items and deletion requests live in two tables keyed by "id". Timestamps
// are stored as epoch milliseconds. Conditional writes use a
// ConditionExpression on the version attribute. A marker row keyed
// "pending#<employee>" in the requests table is written in the same
// transaction as a pending request, which keeps at most one pending
// request per employee.
//
// Listing and counting use paginated Scans with filter expressions. That
// suits the small, slow-moving tables of this service; a large deployment
// would add GSIs on status.
package dynamo
