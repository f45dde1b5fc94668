package selection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fraud-watch/pkg/config"
	"github.com/fraud-watch/pkg/db"
	"github.com/fraud-watch/pkg/extractor"
	"github.com/fraud-watch/pkg/state"
)

var ErrEmptyAddress = errors.New("address must not be empty")

// Selection is the address and chain currently being analyzed.
type Selection struct {
	Address string       `json:"address"`
	Chain   config.Chain `json:"chain"`
}

func (s Selection) Key() string {
	return string(s.Chain) + "/" + s.Address
}

func (s Selection) IsZero() bool { return s.Address == "" }

// Channel publishes and observes the monitored selection through two
// persisted keys. Writers are last-write-wins; readers converge within one
// poll interval.
type Channel struct {
	address  *state.Var[string]
	chain    *state.Var[string]
	interval time.Duration
}

func NewChannel(kv state.KV, interval time.Duration) *Channel {
	if interval <= 0 {
		interval = time.Second
	}
	return &Channel{
		address:  state.NewVar(kv, db.KeyMonitoredAddress, state.StringCodec()),
		chain:    state.NewVar(kv, db.KeyMonitoredChain, state.StringCodec()),
		interval: interval,
	}
}

func (c *Channel) Interval() time.Duration { return c.interval }

// Publish normalises the raw input, infers its chain and makes it the
// current selection.
func (c *Channel) Publish(raw string) (Selection, error) {
	addr := extractor.Normalize(raw)
	if addr == "" {
		return Selection{}, ErrEmptyAddress
	}
	sel := Selection{Address: addr, Chain: extractor.ClassifyAddress(addr)}
	if err := extractor.Validate(sel.Address, sel.Chain); err != nil {
		log.Warn().Err(err).Msg("publishing address that does not validate")
	}

	// chain first so a reader that sees the new address never pairs it with a stale chain
	if err := c.chain.Write(string(sel.Chain)); err != nil {
		return Selection{}, fmt.Errorf("publish chain: %w", err)
	}
	if err := c.address.Write(sel.Address); err != nil {
		return Selection{}, fmt.Errorf("publish address: %w", err)
	}
	log.Info().Str("address", extractor.Abbrev(sel.Address)).Str("chain", string(sel.Chain)).Msg("🎯 monitored address changed")
	return sel, nil
}

// Current returns the published selection, if any.
func (c *Channel) Current() (Selection, bool, error) {
	addr, ok, err := c.address.Read()
	if err != nil || !ok || addr == "" {
		return Selection{}, false, err
	}
	return Selection{Address: addr, Chain: c.chainFor(addr)}, true, nil
}

func (c *Channel) chainFor(addr string) config.Chain {
	raw, ok, err := c.chain.Read()
	if err == nil && ok && config.Chain(raw).Valid() {
		return config.Chain(raw)
	}
	return extractor.ClassifyAddress(addr)
}

func (c *Channel) Clear() error {
	if err := c.address.Clear(); err != nil {
		return err
	}
	return c.chain.Clear()
}

// Watch calls fn with every change of the selection, including the value
// present when watching starts. A cleared selection is delivered as the zero
// Selection. Watch blocks until ctx is done.
func (c *Channel) Watch(ctx context.Context, fn func(Selection)) error {
	return c.address.Subscribe(ctx, c.interval, func(addr string, present bool) {
		if !present || addr == "" {
			fn(Selection{})
			return
		}
		fn(Selection{Address: addr, Chain: c.chainFor(addr)})
	})
}
