package store_test

import (
	"github.com/adiazcan/timesheet-speck-kit-sub001/store"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/dynamo"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/memory"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/mongo"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/postgres"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/redis"
)

// Every backend satisfies the composite interface.
var (
	_ store.Store = (*memory.Store)(nil)
	_ store.Store = (*postgres.Store)(nil)
	_ store.Store = (*redis.Store)(nil)
	_ store.Store = (*mongo.Store)(nil)
	_ store.Store = (*dynamo.Store)(nil)
)
