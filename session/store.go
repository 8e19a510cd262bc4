package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable is returned when the durable layer cannot be reached.
// Callers decide per-operation whether that is fatal (creation, validation)
// or degradable (activity pings, heartbeat writes).
var ErrUnavailable = errors.New("session store unavailable")

// ErrInvalidated is returned by Save when the stored record already carries
// an invalid tombstone. Invalidation is monotonic; the write is refused
// rather than resurrecting the session.
var ErrInvalidated = errors.New("session invalidated")

// tombstoneTTL keeps an invalidated record readable long enough for other
// processes to observe the invalid flag instead of a bare miss.
const tombstoneTTL = 24 * time.Hour

// The scripts below splice fields of the binary record in place so that
// concurrent writers cannot clobber each other with stale snapshots. The
// record trailer is fixed-width: createdAt(8) lastActivityAt(8)
// expiresAt(8) validity(1), so the scripts address fields from the end of
// the blob and never need to parse the length-prefixed strings before it.

// saveScript refuses to overwrite an invalid tombstone; every other write
// is a plain upsert.
const saveScript = `
local existing = redis.call("GET", KEYS[1])
if existing and #existing > 0 and string.byte(existing, #existing) == 0 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
return 1
`

// touchScript rewrites only the lastActivityAt field, keeping the rest of
// the record and its TTL exactly as the last full writer left them.
const touchScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
local n = #data
if n < 25 then
  return 0
end
local updated = string.sub(data, 1, n - 17) .. ARGV[1] .. string.sub(data, n - 8, n)
redis.call("SET", KEYS[1], updated, "KEEPTTL")
return 1
`

// markInvalidScript flips only the validity byte and stamps the tombstone
// TTL. Already-invalid and missing records are left untouched.
const markInvalidScript = `
local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
local n = #data
if string.byte(data, n) == 0 then
  return 1
end
redis.call("SET", KEYS[1], string.sub(data, 1, n - 1) .. string.char(0), "EX", ARGV[1])
return 2
`

var (
	saveLua        = redis.NewScript(saveScript)
	touchLua       = redis.NewScript(touchScript)
	markInvalidLua = redis.NewScript(markInvalidScript)
)

// Store is the durable layer of the triple-layer session store, backed by
// Redis. Full-record writes are idempotent upserts guarded against invalid
// tombstones; partial writes (activity, invalidation) splice single fields
// via Lua so a stale snapshot can never shorten validity another writer
// extended.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore returns a Store using prefix as the Redis key namespace.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "asg"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) key(sessionID string) string {
	return s.prefix + ":sess:" + sessionID
}

func (s *Store) markerKey(userID, kind string) string {
	return s.prefix + ":flag:" + userID + ":" + kind
}

// Save upserts the session record with the given TTL. Saving the same
// session twice is harmless; the later write wins. Writing over a record
// already flagged invalid returns ErrInvalidated and leaves the tombstone
// in place.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	stored, err := saveLua.Run(ctx, s.redis, []string{s.key(sess.SessionID)}, data, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if stored == 0 {
		return ErrInvalidated
	}
	return nil
}

// Get retrieves a session record by ID. A miss returns redis.Nil.
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Decode(data)
}

// MarkInvalid flips the record's validity flag to false and rewrites it with
// a tombstone TTL. The flag is monotonic: an already-invalid or missing
// record is left as is.
func (s *Store) MarkInvalid(ctx context.Context, sessionID string) error {
	seconds := int64(tombstoneTTL / time.Second)
	_, err := markInvalidLua.Run(ctx, s.redis, []string{s.key(sessionID)}, seconds).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Touch writes a new last-activity timestamp without changing any other
// field or the record's remaining TTL, so it can race a full-record Save
// without reverting it. Missing records are ignored; the caller treats
// this write as best-effort.
func (s *Store) Touch(ctx context.Context, sessionID string, at time.Time) error {
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(at.Unix()))
	_, err := touchLua.Run(ctx, s.redis, []string{s.key(sessionID)}, ts[:]).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes the record entirely. Deleting an absent record is a no-op.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// PurgeExpired scans the session namespace and deletes records whose expiry
// has passed, returning how many were removed. Redis TTLs already bound
// growth; the sweep clears records whose stored expiry moved ahead of their
// key TTL and invalid tombstones past their useful life.
//
// O(n) over the namespace; intended for the background sweep only.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	pattern := s.prefix + ":sess:*"
	var (
		cursor uint64
		purged int
	)

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 512).Result()
		if err != nil {
			return purged, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}

		for _, key := range keys {
			data, err := s.redis.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				return purged, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			sess, err := Decode(data)
			if err != nil {
				// Undecodable records are dead weight; remove them.
				if delErr := s.redis.Del(ctx, key).Err(); delErr != nil {
					return purged, fmt.Errorf("%w: %v", ErrUnavailable, delErr)
				}
				purged++
				continue
			}
			if sess.Expired(now) {
				if err := s.redis.Del(ctx, key).Err(); err != nil {
					return purged, fmt.Errorf("%w: %v", ErrUnavailable, err)
				}
				purged++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return purged, nil
}

// ShouldFlagSuspicious reports true only for the first suspicious event of
// this kind per user within the window. The marker self-expires; it
// de-duplicates audit flooding and never gates authorization decisions.
func (s *Store) ShouldFlagSuspicious(ctx context.Context, userID, kind string, window time.Duration) (bool, error) {
	if window <= 0 {
		window = time.Hour
	}
	key := s.markerKey(userID, kind)

	count, err := s.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		if err := s.redis.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return true, nil
	}
	return false, nil
}

// Ping returns a point-in-time availability check and its latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return time.Since(start), nil
}
