package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/itslogin/log"
	"github.com/mpapenbr/itslogin/pkg/session"
	"github.com/mpapenbr/itslogin/pkg/session/factory"
)

var StoreTypeNATS factory.StoreType = "nats"

const DefaultBucket = "itslogin_sessions"

type (
	Option func(*natsStore)

	// natsStore keeps the authId in a JetStream key value bucket.
	// This way views running in other processes share the session.
	natsStore struct {
		cfg    *session.Config
		nc     *nats.Conn
		bucket string
		kv     jetstream.KeyValue
		log    *log.Logger
	}
)

var _ session.Store = (*natsStore)(nil)

var ErrMissingConn = errors.New("nats connection is required")

func New(common []session.Option, specific []Option) (session.Store, error) {
	ret := &natsStore{
		cfg:    session.NewConfig(common...),
		bucket: DefaultBucket,
		log:    log.Default().Named("session.nats"),
	}
	for _, o := range specific {
		o(ret)
	}
	if ret.nc == nil {
		return nil, ErrMissingConn
	}
	if err := ret.init(context.Background()); err != nil {
		return nil, err
	}
	ret.log.Debug("initialized nats session store",
		log.String("bucket", ret.bucket),
		log.Duration("ttl", ret.cfg.TTL))
	return ret, nil
}

func WithConn(nc *nats.Conn) Option {
	return func(s *natsStore) {
		s.nc = nc
	}
}

func WithBucket(bucket string) Option {
	return func(s *natsStore) {
		s.bucket = bucket
	}
}

func (s *natsStore) init(ctx context.Context) error {
	js, err := jetstream.New(s.nc)
	if err != nil {
		return err
	}
	s.kv, err = js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: s.bucket,
		TTL:    s.cfg.TTL,
	})
	return err
}

func (s *natsStore) Get(ctx context.Context) (string, error) {
	kve, err := s.kv.Get(ctx, s.cfg.Key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", session.ErrNoSession
		}
		return "", err
	}
	if len(kve.Value()) == 0 {
		return "", session.ErrNoSession
	}
	return string(kve.Value()), nil
}

func (s *natsStore) Set(ctx context.Context, authID string) error {
	if authID == "" {
		return session.ErrInvalidAuthID
	}
	_, err := s.kv.PutString(ctx, s.cfg.Key, authID)
	return err
}

func (s *natsStore) Clear(ctx context.Context) error {
	err := s.kv.Delete(ctx, s.cfg.Key)
	if err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return err
	}
	return nil
}

func (s *natsStore) Watch(ctx context.Context) (<-chan string, error) {
	w, err := s.kv.Watch(ctx, s.cfg.Key)
	if err != nil {
		return nil, err
	}
	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		defer func() {
			if sErr := w.Stop(); sErr != nil {
				s.log.Debug("error stopping watcher", log.ErrorField(sErr))
			}
		}()
		emitted := false
		for {
			select {
			case <-ctx.Done():
				return
			case kve, ok := <-w.Updates():
				if !ok {
					return
				}
				var val string
				if kve == nil {
					// nil marks the end of the initial values
					if emitted {
						continue
					}
				} else if kve.Operation() == jetstream.KeyValuePut {
					val = string(kve.Value())
				}
				emitted = true
				select {
				case ch <- val:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func init() {
	factory.Register(StoreTypeNATS, New)
}
