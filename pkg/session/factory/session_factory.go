package factory

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/mpapenbr/itslogin/pkg/session"
)

// StoreType selects a session store implementation, see --session-store
type StoreType string

var (
	ErrStoreTypeNotSupported = errors.New("session store type not supported")
	ErrStoreWrongCreator     = errors.New("session store wrong creator")
)

// Creator builds a session store. The session.Option values are shared by
// all stores (key, ttl). ImplOpt is the option type of one implementation,
// e.g. the directory of the file store or the bucket of the nats store, so
// a caller has to pick the matching ImplOpt for the store type it requests.
//
//nolint:lll //readability
type Creator[S session.Store, ImplOpt any] func([]session.Option, []ImplOpt) (S, error)

var registry = map[StoreType]any{}

// Register a new implementation generically
//
//nolint:whitespace //editor/linter issue
func Register[S session.Store, ImplOpt any](
	key StoreType, creator Creator[S, ImplOpt],
) {
	registry[key] = creator
}

// Create a new instance
//
//nolint:whitespace //editor/linter issue
func New[S session.Store, ImplOpt any](
	key StoreType,
	common []session.Option,
	specific []ImplOpt,
) (S, error) {
	var zero S
	entry, ok := registry[key]
	if !ok {
		return zero, fmt.Errorf("%w: %q (available: %v)",
			ErrStoreTypeNotSupported, key, Types())
	}
	creator, ok := entry.(Creator[S, ImplOpt])
	if !ok {
		return zero, fmt.Errorf("%w: %q expects other options than %T",
			ErrStoreWrongCreator, key, *new(ImplOpt))
	}
	return creator(common, specific)
}

// Types returns the registered store types in sorted order
func Types() []StoreType {
	ret := lo.Keys(registry)
	slices.Sort(ret)
	return ret
}
