// Package state is the process-wide state object shared by independently
// mounted pages. Every value lives under one persisted key; readers observe
// writes from other pages by polling, so the staleness bound is exactly the
// interval a subscriber asks for.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/rs/zerolog/log"
)

// KV is the persisted storage underneath the state object.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// Codec converts a value to and from its stored string form.
type Codec[T any] struct {
	Encode func(T) (string, error)
	Decode func(string) (T, error)
}

// StringCodec stores the value verbatim.
func StringCodec() Codec[string] {
	return Codec[string]{
		Encode: func(s string) (string, error) { return s, nil },
		Decode: func(s string) (string, error) { return s, nil },
	}
}

// JSONCodec stores the value as JSON.
func JSONCodec[T any]() Codec[T] {
	return Codec[T]{
		Encode: func(v T) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
		Decode: func(s string) (T, error) {
			var v T
			err := json.Unmarshal([]byte(s), &v)
			return v, err
		},
	}
}

// Var is a typed view over one persisted key.
type Var[T any] struct {
	kv    KV
	key   string
	codec Codec[T]
}

func NewVar[T any](kv KV, key string, codec Codec[T]) *Var[T] {
	return &Var[T]{kv: kv, key: key, codec: codec}
}

func (v *Var[T]) Key() string { return v.key }

// Read returns the stored value and whether one is present.
func (v *Var[T]) Read() (T, bool, error) {
	var zero T
	raw, ok, err := v.kv.Get(v.key)
	if err != nil || !ok {
		return zero, false, err
	}
	val, err := v.codec.Decode(raw)
	if err != nil {
		return zero, false, fmt.Errorf("decode %s: %w", v.key, err)
	}
	return val, true, nil
}

func (v *Var[T]) Write(val T) error {
	raw, err := v.codec.Encode(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", v.key, err)
	}
	return v.kv.Set(v.key, raw)
}

func (v *Var[T]) Clear() error {
	return v.kv.Delete(v.key)
}

// Subscribe polls the key every interval and calls fn whenever the stored
// value differs from the subscriber's local copy. The first poll happens
// immediately, so fn also sees the value present at subscription time.
// Subscribe blocks until ctx is done.
func (v *Var[T]) Subscribe(ctx context.Context, interval time.Duration, fn func(val T, present bool)) error {
	var (
		last        T
		lastPresent bool
		seen        bool
	)

	check := func() {
		val, ok, err := v.Read()
		if err != nil {
			log.Debug().Err(err).Str("key", v.key).Msg("state poll failed")
			return
		}
		if seen && ok == lastPresent && reflect.DeepEqual(val, last) {
			return
		}
		seen, last, lastPresent = true, val, ok
		fn(val, ok)
	}

	check()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			check()
		}
	}
}
