package ratelimit

// tokenBucketScript is the atomic server-side token bucket. It must run
// on the store so that concurrent gateway instances share one bucket per
// key without a distributed lock.
//
// The script uses the store server's own clock (TIME, seconds). The
// gateway never passes a client-side timestamp: clock drift between
// gateway nodes would let callers burst past the budget.
//
// KEYS[1]  bucket hash key
// ARGV[1]  capacity
// ARGV[2]  refill rate (tokens per second)
// ARGV[3]  requested tokens
//
// Returns {allowed (0|1), floor(remaining tokens)}.
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_rate = tonumber(ARGV[2])
local requested = tonumber(ARGV[3])

local now = tonumber(redis.call('TIME')[1])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refilled')
local tokens = tonumber(bucket[1])
local last_refilled = tonumber(bucket[2])

if tokens == nil or last_refilled == nil then
  tokens = capacity
  last_refilled = now
end

local delta = math.max(0, now - last_refilled)
local refilled = math.min(capacity, tokens + delta * refill_rate)
if refilled > tokens then
  last_refilled = now
end
tokens = refilled

local allowed = 0
if tokens >= requested then
  tokens = tokens - requested
  allowed = 1
end

local ttl = 60
if refill_rate > 0 then
  ttl = math.ceil(capacity / refill_rate * 2)
end

redis.call('HMSET', key, 'tokens', tokens, 'last_refilled', last_refilled)
redis.call('EXPIRE', key, ttl)

return {allowed, math.floor(tokens)}
`
