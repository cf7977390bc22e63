package util

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/itslogin/log"
	"github.com/mpapenbr/itslogin/pkg/config"
	"github.com/mpapenbr/itslogin/pkg/session"
	"github.com/mpapenbr/itslogin/pkg/session/factory"
	"github.com/mpapenbr/itslogin/pkg/session/impl/file"
	"github.com/mpapenbr/itslogin/pkg/session/impl/memory"
	natsStore "github.com/mpapenbr/itslogin/pkg/session/impl/nats"
)

// NewSessionStore creates the store selected by the session flags.
// The returned func releases resources held by the store.
func NewSessionStore() (store session.Store, closer func(), err error) {
	common, err := commonSessionOptions()
	if err != nil {
		return nil, nil, err
	}
	noop := func() {}

	switch factory.StoreType(config.SessionStore) {
	case memory.StoreTypeMemory:
		store, err = factory.New[session.Store, memory.Option](
			memory.StoreTypeMemory, common, nil)
		return store, noop, err

	case file.StoreTypeFile:
		var opts []file.Option
		if config.SessionDir != "" {
			opts = append(opts, file.WithDir(config.SessionDir))
		}
		store, err = factory.New[session.Store, file.Option](
			file.StoreTypeFile, common, opts)
		return store, noop, err

	case natsStore.StoreTypeNATS:
		nc, err := nats.Connect(config.NATSURL, nats.Name("itslogin"))
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to nats: %w", err)
		}
		opts := []natsStore.Option{natsStore.WithConn(nc)}
		if config.NATSBucket != "" {
			opts = append(opts, natsStore.WithBucket(config.NATSBucket))
		}
		store, err = factory.New[session.Store, natsStore.Option](
			natsStore.StoreTypeNATS, common, opts)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return store, func() {
			if err := nc.Drain(); err != nil {
				log.Warn("draining nats connection", log.ErrorField(err))
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("%w: %s (supported: %v)",
			factory.ErrStoreTypeNotSupported, config.SessionStore, factory.Types())
	}
}

func commonSessionOptions() ([]session.Option, error) {
	var ret []session.Option
	if config.SessionKey != "" {
		ret = append(ret, session.WithKey(config.SessionKey))
	}
	if config.SessionTTL != "" {
		ttl, err := time.ParseDuration(config.SessionTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid session ttl: %w", err)
		}
		ret = append(ret, session.WithTTL(ttl))
	}
	return ret, nil
}
