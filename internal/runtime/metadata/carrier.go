package metadata

import "strings"

// Entry is one key/value pair of a Carrier.
type Entry struct {
	Key   string
	Value Value
}

// Carrier is an ordered mapping of unique keys to typed values. Insertion
// order is kept for display only. The zero Carrier is empty and ready to use.
type Carrier struct {
	entries []Entry
}

// New builds a Carrier from entries; later duplicates overwrite earlier ones
// in place.
func New(entries ...Entry) Carrier {
	var c Carrier
	for _, e := range entries {
		c.Set(e.Key, e.Value)
	}
	return c
}

// Set stores v under key, keeping the original position when key exists.
func (c *Carrier) Set(key string, v Value) {
	for i := range c.entries {
		if c.entries[i].Key == key {
			c.entries[i].Value = v
			return
		}
	}
	c.entries = append(c.entries, Entry{Key: key, Value: v})
}

// With returns a copy of c with key set to v.
func (c Carrier) With(key string, v Value) Carrier {
	out := c.Clone()
	out.Set(key, v)
	return out
}

func (c Carrier) Get(key string) (Value, bool) {
	for _, e := range c.entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

func (c Carrier) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Text returns the display form of key, or "" when absent.
func (c Carrier) Text(key string) string {
	v, ok := c.Get(key)
	if !ok {
		return ""
	}
	return v.String()
}

// Delete removes key, reporting whether it was present.
func (c *Carrier) Delete(key string) bool {
	for i, e := range c.entries {
		if e.Key == key {
			c.entries = append(c.entries[:i:i], c.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (c Carrier) Keys() []string {
	keys := make([]string, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns the pairs in insertion order. The slice is a copy.
func (c Carrier) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

func (c Carrier) Len() int { return len(c.entries) }

// Clone returns an independent copy of c.
func (c Carrier) Clone() Carrier {
	out := Carrier{entries: make([]Entry, len(c.entries))}
	for i, e := range c.entries {
		if raw, ok := e.Value.AsBytes(); ok {
			e.Value = Bytes(raw)
		}
		out.entries[i] = e
	}
	return out
}

// Normalize returns a copy with every Bytes value decoded to Text.
func (c Carrier) Normalize() Carrier {
	out := Carrier{entries: make([]Entry, len(c.entries))}
	for i, e := range c.entries {
		out.entries[i] = Entry{Key: e.Key, Value: e.Value.Normalize()}
	}
	return out
}

// Equal reports whether both carriers hold the same keys with equal values,
// ignoring order.
func (c Carrier) Equal(o Carrier) bool {
	if c.Len() != o.Len() {
		return false
	}
	for _, e := range c.entries {
		ov, ok := o.Get(e.Key)
		if !ok || !e.Value.Equal(ov) {
			return false
		}
	}
	return true
}

func (c Carrier) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, e := range c.entries {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.Key)
		sb.WriteString(": ")
		sb.WriteString(e.Value.String())
	}
	sb.WriteByte('}')
	return sb.String()
}
