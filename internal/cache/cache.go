// Package cache defines the result store used for cacheable operations and
// the codec shared by the cache and the remote channels.
//
// A cache key is a fingerprint of the function identity, its version and the
// encoded resolved arguments. Values are stored as encoded bytes and decoded
// back into the declared output type on a hit.
package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"
)

// Store persists encoded operation results by fingerprint.
type Store interface {
	// Get returns the stored bytes and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
}

// Fingerprint derives the cache key for one call. Map keys are sorted before
// hashing so equal arguments always produce the same key.
func Fingerprint(name, version string, args []any) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.EncodeString(name); err != nil {
		return "", err
	}
	if err := enc.EncodeString(version); err != nil {
		return "", err
	}
	if err := enc.Encode(args); err != nil {
		return "", fmt.Errorf("encoding arguments of %s: %w", name, err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// Encode serializes a value for the cache or a channel.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes b into a value of type t. A nil t decodes into a
// generic value.
func Decode(b []byte, t reflect.Type) (any, error) {
	if t == nil {
		var v any
		if err := msgpack.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	ptr := reflect.New(t)
	if err := msgpack.Unmarshal(b, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", t, err)
	}
	return ptr.Elem().Interface(), nil
}
