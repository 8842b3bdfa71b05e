package metadata

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/electsolve/outagewire/internal/runtime/jsoncodec"
)

// KindsKey is the reserved Watermill metadata key that carries the order and
// kind of every entry, so typed values survive string-only transports.
const KindsKey = "_outagewire_kinds"

// ToWatermill flattens c into Watermill's string metadata.
func ToWatermill(c Carrier) (message.Metadata, error) {
	md := make(message.Metadata, len(c.entries)+1)
	kinds := make([][2]string, 0, len(c.entries))
	for _, e := range c.entries {
		if e.Key == KindsKey {
			return nil, fmt.Errorf("metadata: key %q is reserved", KindsKey)
		}
		md[e.Key] = e.Value.encodeString()
		kinds = append(kinds, [2]string{e.Key, e.Value.kind.String()})
	}
	data, err := jsoncodec.Marshal(kinds)
	if err != nil {
		return nil, fmt.Errorf("metadata: encode kinds: %w", err)
	}
	md[KindsKey] = string(data)
	return md, nil
}

// FromWatermill rebuilds a Carrier from Watermill metadata. Keys without a
// sidecar entry are read as Text and appended in sorted order. Watermill's
// internal keys are skipped.
func FromWatermill(md message.Metadata) (Carrier, error) {
	var c Carrier
	seen := make(map[string]bool, len(md))

	if raw, ok := md[KindsKey]; ok && raw != "" {
		var kinds [][2]string
		if err := jsoncodec.Unmarshal([]byte(raw), &kinds); err != nil {
			return Carrier{}, fmt.Errorf("metadata: decode kinds: %w", err)
		}
		for _, pair := range kinds {
			key, kindName := pair[0], pair[1]
			s, ok := md[key]
			if !ok || seen[key] {
				continue
			}
			kind, err := ParseKind(kindName)
			if err != nil {
				return Carrier{}, err
			}
			v, err := decodeString(kind, s)
			if err != nil {
				return Carrier{}, fmt.Errorf("metadata: decode %q as %s: %w", key, kind, err)
			}
			c.Set(key, v)
			seen[key] = true
		}
	}

	rest := make([]string, 0, len(md))
	for key := range md {
		if seen[key] || key == KindsKey || strings.HasPrefix(key, "_watermill") {
			continue
		}
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		c.Set(key, Text(md[key]))
	}
	return c, nil
}
