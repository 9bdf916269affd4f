package redis

import goredis "github.com/redis/go-redis/v9"

// Script results.
const (
	resultOK        = 1
	resultConflict  = 0
	resultMissing   = -1
	resultDuplicate = -2
	resultPending   = -3
)

// writeItemScript creates or conditionally updates an item Hash and keeps
// its index memberships in sync.
//
// KEYS: item, due, processing, item_ids, employee_items
// ARGV: expected version ("" to create), id, due score ("" to drop),
// claim score ("" to drop), created score, field, value, ...
var writeItemScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if ARGV[1] == '' then
	if cur then return -2 end
else
	if not cur then return -1 end
	if cur ~= ARGV[1] then return 0 end
end
redis.call('HSET', KEYS[1], unpack(ARGV, 6))
if ARGV[3] == '' then
	redis.call('ZREM', KEYS[2], ARGV[2])
else
	redis.call('ZADD', KEYS[2], ARGV[3], ARGV[2])
end
if ARGV[4] == '' then
	redis.call('ZREM', KEYS[3], ARGV[2])
else
	redis.call('ZADD', KEYS[3], ARGV[4], ARGV[2])
end
redis.call('SADD', KEYS[4], ARGV[2])
redis.call('ZADD', KEYS[5], ARGV[5], ARGV[2])
return 1
`)

// writeRequestScript creates or conditionally updates a deletion request
// Hash. The pending map holds at most one request per employee.
//
// KEYS: request, pending, deletion_due, deletion_ids, employee_deletions
// ARGV: expected version ("" to create), id, employee, status,
// scheduled score, submitted score, field, value, ...
var writeRequestScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if ARGV[1] == '' then
	if cur then return -2 end
else
	if not cur then return -1 end
	if cur ~= ARGV[1] then return 0 end
end
local owner = redis.call('HGET', KEYS[2], ARGV[3])
if ARGV[4] == 'pending' then
	if owner and owner ~= ARGV[2] then return -3 end
	redis.call('HSET', KEYS[2], ARGV[3], ARGV[2])
	redis.call('ZADD', KEYS[3], ARGV[5], ARGV[2])
else
	if owner == ARGV[2] then redis.call('HDEL', KEYS[2], ARGV[3]) end
	redis.call('ZREM', KEYS[3], ARGV[2])
end
redis.call('HSET', KEYS[1], unpack(ARGV, 7))
redis.call('SADD', KEYS[4], ARGV[2])
redis.call('ZADD', KEYS[5], ARGV[6], ARGV[2])
return 1
`)
