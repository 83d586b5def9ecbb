package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var eventsBucket = []byte("events")

// Journal is an append-only history of downloads and deliveries kept in a
// bolt database. It records what happened; it is never consulted to skip work.
//
// The database is opened for the duration of each call only, so other
// processes (the history command) can read it while the bot is running.
type Journal struct {
	sync.RWMutex
	path string
	now  func() time.Time
	// maps file to the time it was last delivered
	last map[string]time.Time
}

type EventType int

const (
	EventTypeFetched EventType = iota
	EventTypeSent
)

func (e EventType) String() string {
	switch e {
	case EventTypeFetched:
		return "fetched"
	case EventTypeSent:
		return "sent"
	}

	return ""
}

// Define marshalling/unmarshalling for EventType
func (e EventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

func (e *EventType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}

	switch s {
	case "fetched":
		*e = EventTypeFetched
	case "sent":
		*e = EventTypeSent
	default:
		return errors.New("invalid event type")
	}

	return nil
}

type Event struct {
	Seq  uint64    `json:"-"`
	Time time.Time `json:"time"`
	Type EventType `json:"type"`
	// image saved by a fetcher
	Fetched *FetchedEvent `json:"fetched,omitempty"`
	// image delivered to a chat
	Sent *SentEvent `json:"sent,omitempty"`
}

type FetchedEvent struct {
	File   string `json:"file"`
	Source string `json:"source"`
}

type SentEvent struct {
	File  string `json:"file"`
	Chat  string `json:"chat"`
	Cycle int    `json:"cycle"`
}

// lockTimeout bounds how long a call waits for another process holding the file.
const lockTimeout = 5 * time.Second

// Open creates the journal at path if needed and loads the delivery history.
func Open(path string) (*Journal, error) {
	j := &Journal{
		path: path,
		now:  time.Now,
		last: make(map[string]time.Time),
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(eventsBucket)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = db.View(func(tx *bolt.Tx) error {
		return each(tx, func(event Event) error {
			if event.Type == EventTypeSent {
				j.sent(event.Time, event.Sent)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return j, nil
}

// update runs f in a write transaction on a freshly opened database.
func (j *Journal) update(f func(b *bolt.Bucket) error) error {
	db, err := bolt.Open(j.path, 0600, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		return f(tx.Bucket(eventsBucket))
	})
}

// view runs f in a read transaction. The file is opened read-only so readers
// share the lock with each other.
func (j *Journal) view(f func(tx *bolt.Tx) error) error {
	db, err := bolt.Open(j.path, 0600, &bolt.Options{Timeout: lockTimeout, ReadOnly: true})
	if err != nil {
		return err
	}
	defer db.Close()

	return db.View(f)
}

func each(tx *bolt.Tx, f func(Event) error) error {
	c := tx.Bucket(eventsBucket).Cursor()

	for k, v := c.First(); k != nil; k, v = c.Next() {
		var event Event
		if err := json.Unmarshal(v, &event); err != nil {
			return err
		}
		event.Seq = binary.BigEndian.Uint64(k)

		if err := f(event); err != nil {
			return err
		}
	}

	return nil
}

func (j *Journal) sent(at time.Time, event *SentEvent) {
	if event == nil {
		return
	}
	if at.After(j.last[event.File]) {
		j.last[event.File] = at
	}
}

func (j *Journal) append(event *Event) error {
	event.Time = j.now()
	return j.update(func(b *bolt.Bucket) error {
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}

		data, err := json.Marshal(event)
		if err != nil {
			return err
		}

		event.Seq = seq
		return b.Put(key(seq), data)
	})
}

// Fetched records a file saved from source.
func (j *Journal) Fetched(file, source string) error {
	j.Lock()
	defer j.Unlock()

	return j.append(&Event{
		Type:    EventTypeFetched,
		Fetched: &FetchedEvent{File: file, Source: source},
	})
}

// Sent records a file delivered to chat during a delivery cycle.
func (j *Journal) Sent(file, chat string, cycle int) error {
	j.Lock()
	defer j.Unlock()

	event := &Event{
		Type: EventTypeSent,
		Sent: &SentEvent{File: file, Chat: chat, Cycle: cycle},
	}
	if err := j.append(event); err != nil {
		return err
	}
	j.sent(event.Time, event.Sent)
	return nil
}

// View iterates over all events on disk, oldest first.
func (j *Journal) View(f func(Event) error) error {
	return j.view(func(tx *bolt.Tx) error {
		return each(tx, f)
	})
}

// Size returns the number of events on disk
func (j *Journal) Size() (int, error) {
	size := 0
	err := j.view(func(tx *bolt.Tx) error {
		size = tx.Bucket(eventsBucket).Stats().KeyN
		return nil
	})
	return size, err
}

// LastSent returns when file was last delivered through this journal or
// before it was opened.
func (j *Journal) LastSent(file string) (time.Time, bool) {
	j.RLock()
	last, ok := j.last[file]
	j.RUnlock()
	return last, ok
}

func key(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
