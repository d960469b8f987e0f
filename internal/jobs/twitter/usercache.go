package twitter

import (
	"container/list"
	"sync"
	"time"
)

type userEntry struct {
	id        int64
	info      UserInfo
	timestamp time.Time
	element   *list.Element
}

// userCache keeps recently looked up profiles, evicting the least recently
// stored entry once full. Entries older than maxAge are dropped on read.
type userCache struct {
	lock    sync.Mutex
	entries map[int64]*userEntry
	order   *list.List // oldest at Front, newest at Back
	maxSize int
	maxAge  time.Duration
	now     func() time.Time
}

func newUserCache(maxSize int, maxAge time.Duration) *userCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &userCache{
		entries: make(map[int64]*userEntry),
		order:   list.New(),
		maxSize: maxSize,
		maxAge:  maxAge,
		now:     time.Now,
	}
}

func (c *userCache) Set(info UserInfo) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if entry, exists := c.entries[info.ID]; exists {
		entry.info = info
		entry.timestamp = c.now()
		c.order.MoveToBack(entry.element)
		return
	}
	entry := &userEntry{id: info.ID, info: info, timestamp: c.now()}
	entry.element = c.order.PushBack(entry)
	c.entries[info.ID] = entry
	for len(c.entries) > c.maxSize {
		oldest := c.order.Front()
		delete(c.entries, oldest.Value.(*userEntry).id)
		c.order.Remove(oldest)
	}
}

func (c *userCache) Get(id int64) (UserInfo, bool) {
	c.lock.Lock()
	defer c.lock.Unlock()
	entry, exists := c.entries[id]
	if !exists {
		return UserInfo{}, false
	}
	if c.maxAge > 0 && c.now().Sub(entry.timestamp) > c.maxAge {
		c.order.Remove(entry.element)
		delete(c.entries, id)
		return UserInfo{}, false
	}
	return entry.info, true
}
