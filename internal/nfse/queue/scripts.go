package queue

import "github.com/redis/go-redis/v9"

// KEYS: job, wait. ARGV: id, data, attempts, backoff ms, remove on complete, remove on fail, now ms.
var addScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "id", ARGV[1], "data", ARGV[2], "attempts", ARGV[3], "backoff", ARGV[4],
  "remove_on_complete", ARGV[5], "remove_on_fail", ARGV[6],
  "attempts_made", 0, "stalled_count", 0, "state", "waiting", "created_at", ARGV[7])
redis.call("LPUSH", KEYS[2], ARGV[1])
return 1
`)

// KEYS: job, lock, active, stalled-check. ARGV: id, token, lock ms, now ms.
var lockScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  redis.call("LREM", KEYS[3], 0, ARGV[1])
  return 0
end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
redis.call("SREM", KEYS[4], ARGV[1])
redis.call("HSET", KEYS[1], "state", "active", "processed_on", ARGV[4])
return 1
`)

// KEYS: lock, stalled-check. ARGV: token, lock ms, id.
var extendLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
  redis.call("SREM", KEYS[2], ARGV[3])
  return 1
end
return 0
`)

// KEYS: job, lock, active. ARGV: id, token, now ms.
var completeScript = redis.NewScript(`
if redis.call("GET", KEYS[2]) ~= ARGV[2] then
  return -1
end
redis.call("DEL", KEYS[2])
redis.call("LREM", KEYS[3], 0, ARGV[1])
if redis.call("HGET", KEYS[1], "remove_on_complete") == "1" then
  redis.call("DEL", KEYS[1])
else
  redis.call("HSET", KEYS[1], "state", "completed", "finished_on", ARGV[3])
end
return 0
`)

// KEYS: job, lock, active, delayed, dead. ARGV: id, token, now ms, reason.
// Returns the retry delay in ms, -1 when the lock was lost, -2 when the job is exhausted.
var failScript = redis.NewScript(`
if redis.call("GET", KEYS[2]) ~= ARGV[2] then
  return -1
end
redis.call("DEL", KEYS[2])
redis.call("LREM", KEYS[3], 0, ARGV[1])
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -2
end
local made = redis.call("HINCRBY", KEYS[1], "attempts_made", 1)
local attempts = tonumber(redis.call("HGET", KEYS[1], "attempts"))
redis.call("HSET", KEYS[1], "failed_reason", ARGV[4])
if made < attempts then
  local delay = tonumber(redis.call("HGET", KEYS[1], "backoff"))
  for i = 2, made do
    delay = delay * 2
  end
  redis.call("ZADD", KEYS[4], tonumber(ARGV[3]) + delay, ARGV[1])
  redis.call("HSET", KEYS[1], "state", "delayed")
  return delay
end
if redis.call("HGET", KEYS[1], "remove_on_fail") == "1" then
  redis.call("DEL", KEYS[1])
else
  redis.call("ZADD", KEYS[5], ARGV[3], ARGV[1])
  redis.call("HSET", KEYS[1], "state", "failed", "finished_on", ARGV[3])
end
return -2
`)

// KEYS: delayed, wait. ARGV: now ms, limit, job key prefix.
var promoteScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
for _, id in ipairs(ids) do
  redis.call("ZREM", KEYS[1], id)
  redis.call("LPUSH", KEYS[2], id)
  redis.call("HSET", ARGV[3] .. id, "state", "waiting")
end
return #ids
`)

// KEYS: stalled-check, active, wait, dead. ARGV: key prefix, max stalled count, now ms, reason.
// Jobs that were active without a lock on the previous pass and still are go back to wait,
// or to dead once they stalled more than the limit. Returns "r:<id>" / "d:<id>" entries.
var stalledScript = redis.NewScript(`
local prefix = ARGV[1]
local out = {}
local candidates = redis.call("SMEMBERS", KEYS[1])
for _, id in ipairs(candidates) do
  if redis.call("EXISTS", prefix .. "lock:" .. id) == 0 then
    if redis.call("LREM", KEYS[2], 1, id) > 0 then
      local jobKey = prefix .. "job:" .. id
      if redis.call("EXISTS", jobKey) == 1 then
        local count = redis.call("HINCRBY", jobKey, "stalled_count", 1)
        if count > tonumber(ARGV[2]) then
          redis.call("ZADD", KEYS[4], ARGV[3], id)
          redis.call("HSET", jobKey, "state", "failed", "failed_reason", ARGV[4], "finished_on", ARGV[3])
          table.insert(out, "d:" .. id)
        else
          redis.call("RPUSH", KEYS[3], id)
          redis.call("HSET", jobKey, "state", "waiting")
          table.insert(out, "r:" .. id)
        end
      end
    end
  end
end
redis.call("DEL", KEYS[1])
local active = redis.call("LRANGE", KEYS[2], 0, -1)
for _, id in ipairs(active) do
  redis.call("SADD", KEYS[1], id)
end
return out
`)

// KEYS: job, dead, wait. ARGV: id.
var retryDeadScript = redis.NewScript(`
if redis.call("ZREM", KEYS[2], ARGV[1]) == 0 then
  return 0
end
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
redis.call("HSET", KEYS[1], "attempts_made", 0, "stalled_count", 0, "state", "waiting", "failed_reason", "")
redis.call("LPUSH", KEYS[3], ARGV[1])
return 1
`)
