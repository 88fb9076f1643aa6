package storage

import (
	"errors"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheBlocklist keeps blocked vendors as expiring memcache keys.
type MemcacheBlocklist struct {
	client *memcache.Client
	prefix string
}

var _ Blocklist = (*MemcacheBlocklist)(nil)

// NewMemcacheBlocklist creates a blocklist on the memcache at serverAddr.
func NewMemcacheBlocklist(serverAddr, prefix string) *MemcacheBlocklist {
	return &MemcacheBlocklist{
		client: memcache.New(serverAddr),
		prefix: prefix,
	}
}

// IsBlocked reports whether vendor is still cooling down.
func (b *MemcacheBlocklist) IsBlocked(vendor string) (bool, error) {
	_, err := b.client.Get(b.key(vendor))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Block keeps vendor out of rotation for d.
func (b *MemcacheBlocklist) Block(vendor string, d time.Duration) error {
	return b.client.Set(&memcache.Item{
		Key:        b.key(vendor),
		Value:      []byte(time.Now().UTC().Format(time.RFC3339)),
		Expiration: int32(d.Seconds()),
	})
}

// Unblock lifts a block early.
func (b *MemcacheBlocklist) Unblock(vendor string) error {
	err := b.client.Delete(b.key(vendor))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// key builds a memcache-safe key; memcache rejects spaces and control characters.
func (b *MemcacheBlocklist) key(vendor string) string {
	name := strings.ToLower(strings.Join(strings.Fields(vendor), "_"))
	return b.prefix + ":" + name
}
