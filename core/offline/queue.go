// Package offline holds the durable queue of not-yet-confirmed mutations
// and the engine that drains it once connectivity returns.
package offline

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sekolahmbg/mbg-client/storage/kv"
)

// Item is one pending mutation awaiting sync. The backend dispatches on
// Type; Payload is opaque here.
type Item struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
	Tries     int             `json:"tries"`
}

// Queue persists pending items as a single JSON array in the key-value
// store. Every operation is a read-modify-write of the whole list; the
// mutex keeps interleaved mutations from losing updates. Items never expire
// on their own: the only ways out are confirmed success or explicit removal.
type Queue struct {
	mu    sync.Mutex
	store kv.Store
}

func NewQueue(store kv.Store) *Queue {
	return &Queue{store: store}
}

// Enqueue appends a new item and returns it as stored. When no id is given
// one is generated: millisecond timestamp plus a random suffix.
func (q *Queue) Enqueue(itemType string, payload interface{}, id ...string) (Item, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Item{}, errors.Wrap(err, "encoding payload")
	}

	item := Item{
		Type:      itemType,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}
	if len(id) > 0 && id[0] != "" {
		item.ID = id[0]
	} else {
		item.ID = newItemID()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.load()
	items = append(items, item)
	q.save(items)
	return item, nil
}

// All returns the full current queue contents.
func (q *Queue) All() []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load()
}

// Remove drops the item with the matching id; no-op if absent.
func (q *Queue) Remove(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.load()
	for i, item := range items {
		if item.ID == id {
			q.save(append(items[:i], items[i+1:]...))
			return
		}
	}
}

// BumpTries increments the retry counter of the matching item in place,
// leaving its queue position unchanged; no-op if absent.
func (q *Queue) BumpTries(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.load()
	for i := range items {
		if items[i].ID == id {
			items[i].Tries++
			q.save(items)
			return
		}
	}
}

// Len reports the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.load())
}

func (q *Queue) load() []Item {
	var items []Item
	if !kv.GetJSON(q.store, kv.QueueKey, &items) {
		return nil
	}
	return items
}

func (q *Queue) save(items []Item) {
	if items == nil {
		items = []Item{}
	}
	kv.SetJSON(q.store, kv.QueueKey, items)
}

func newItemID() string {
	ms := time.Now().UnixNano() / int64(time.Millisecond)
	return strconv.FormatInt(ms, 10) + "-" + uuid.New().String()
}
