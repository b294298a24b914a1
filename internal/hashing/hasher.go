// Package hashing computes the normalized content fingerprint used to detect
// unchanged re-submissions.
package hashing

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// DefaultExclusions are the volatile fields that never contribute to a content hash.
var DefaultExclusions = []string{"provider", "user"}

type Hasher struct {
	exclusions []string
}

func NewHasher(exclusions ...string) *Hasher {
	if len(exclusions) == 0 {
		exclusions = DefaultExclusions
	}
	return &Hasher{exclusions: exclusions}
}

func (h *Hasher) Exclusions() []string {
	out := make([]string, len(h.exclusions))
	copy(out, h.exclusions)
	return out
}

func (h *Hasher) Hash(data interface{}) (string, error) {
	return GenerateHash(data, h.exclusions)
}

// GenerateHash returns the hex SHA-256 of the canonical form of data after
// removing every dot-path in exclusions. Floats are rendered with six
// decimals, maps are key-sorted and lists are sorted, so lists compare as sets.
// data is never modified.
func GenerateHash(data interface{}, exclusions []string) (string, error) {
	value, err := toGeneric(data)
	if err != nil {
		return "", fmt.Errorf("failed to prepare data for hashing: %w", err)
	}

	for _, path := range exclusions {
		if path == "" {
			continue
		}
		removePath(value, strings.Split(path, "."))
	}

	normalized, err := normalize(value)
	if err != nil {
		return "", err
	}

	encoded, err := canonicalJSON(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to encode normalized data: %w", err)
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

// toGeneric deep-copies data into map[string]interface{} / []interface{} trees.
// Values of other composite types go through a JSON round trip.
func toGeneric(data interface{}) (interface{}, error) {
	switch v := data.(type) {
	case nil, string, bool, json.Number,
		float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			converted, err := toGeneric(item)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			converted, err := toGeneric(item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	}

	switch reflect.ValueOf(data).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Pointer:
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var out interface{}
		if err := dec.Decode(&out); err != nil {
			return nil, err
		}
		return out, nil
	}

	return nil, fmt.Errorf("unsupported value of type %T", data)
}

// removePath deletes the field addressed by parts. Lists are transparent:
// every element is matched against the same remaining path.
func removePath(value interface{}, parts []string) {
	if len(parts) == 0 {
		return
	}

	switch v := value.(type) {
	case map[string]interface{}:
		if len(parts) == 1 {
			delete(v, parts[0])
			return
		}
		if child, ok := v[parts[0]]; ok {
			removePath(child, parts[1:])
		}
	case []interface{}:
		for _, item := range v {
			removePath(item, parts)
		}
	}
}

func normalize(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil

	case []interface{}:
		type keyed struct {
			value interface{}
			key   string
		}
		items := make([]keyed, len(v))
		for i, item := range v {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			encoded, err := canonicalJSON(n)
			if err != nil {
				return nil, err
			}
			items[i] = keyed{value: n, key: string(encoded)}
		}
		sort.SliceStable(items, func(i, j int) bool { return items[i].key < items[j].key })

		out := make([]interface{}, len(items))
		for i, item := range items {
			out[i] = item.value
		}
		return out, nil

	case float64:
		return formatFloat(v, 64), nil
	case float32:
		return formatFloat(float64(v), 32), nil

	case json.Number:
		s := v.String()
		if !strings.ContainsAny(s, ".eE") {
			return v, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", s, err)
		}
		return formatFloat(f, 64), nil
	}

	return value, nil
}

func formatFloat(f float64, bitSize int) string {
	return strconv.FormatFloat(f, 'f', 6, bitSize)
}

func canonicalJSON(value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
