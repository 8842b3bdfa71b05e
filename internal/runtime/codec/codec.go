// Package codec turns an outage.Batch into a self-describing payload and back.
//
// Every codec honours the same contract: Decode(Encode(b)) reproduces b,
// including presence flags and order; blank input decodes to an empty batch;
// anything that does not match the schema fails with a SchemaViolationError
// naming the offending field path.
package codec

import (
	"bytes"
	"fmt"
	"mime"
	"sort"
	"strings"
	"sync"

	errspkg "github.com/electsolve/outagewire/internal/runtime/errors"
	"github.com/electsolve/outagewire/internal/runtime/outage"
)

// Codec serializes a whole batch as one unit.
type Codec interface {
	// Name is the short configuration name, for example "xml".
	Name() string
	// ContentType is the media type stamped on published messages.
	ContentType() string
	Encode(batch outage.Batch) ([]byte, error)
	Decode(data []byte) (outage.Batch, error)
}

// Registry resolves codecs by name or by content type. It is safe for
// concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Codec
	byType map[string]Codec
}

// NewRegistry returns a registry holding codecs.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{
		byName: make(map[string]Codec),
		byType: make(map[string]Codec),
	}
	for _, c := range codecs {
		r.Register(c)
	}
	return r
}

// DefaultRegistry returns a new registry with the XML, JSON and protowire codecs.
func DefaultRegistry() *Registry {
	return NewRegistry(XML{}, JSON{}, Protowire{})
}

// Register adds c, replacing any codec with the same name or content type.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[strings.ToLower(c.Name())] = c
	r.byType[normalizeMediaType(c.ContentType())] = c
}

// ByName returns the codec registered under name (case-insensitive).
func (r *Registry) ByName(name string) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errspkg.ErrUnknownCodec, name)
	}
	return c, nil
}

// ByContentType returns the codec for a media type. Parameters such as
// charset are ignored.
func (r *Registry) ByContentType(contentType string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byType[normalizeMediaType(contentType)]
	return c, ok
}

// Names lists the registered codec names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeMediaType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType
}

func isBlank(data []byte) bool {
	return len(bytes.TrimSpace(data)) == 0
}
