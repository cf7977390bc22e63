package navigation

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mpapenbr/itslogin/log"
	"github.com/mpapenbr/itslogin/pkg/model"
)

type Destination string

const (
	DestinationTeacherView Destination = "teacherView"
	DestinationStudentView Destination = "studentView"
)

type (
	Params struct {
		AuthID string
	}

	// Navigator receives routing instructions
	Navigator interface {
		Navigate(ctx context.Context, dest Destination, params Params) error
	}

	View interface {
		Show(ctx context.Context, params Params) error
	}
	ViewFunc func(ctx context.Context, params Params) error

	RouterOption func(*Router)

	// Router dispatches navigation requests to registered views
	Router struct {
		mu      sync.Mutex
		views   map[Destination]View
		history []Destination
		log     *log.Logger
	}
)

var ErrUnknownDestination = errors.New("unknown destination")

var _ Navigator = (*Router)(nil)

func (f ViewFunc) Show(ctx context.Context, params Params) error {
	return f(ctx, params)
}

// DestinationForRole maps the role chosen at login to its view
func DestinationForRole(role model.Role) (Destination, error) {
	switch role {
	case model.RoleTeacher:
		return DestinationTeacherView, nil
	case model.RoleStudent:
		return DestinationStudentView, nil
	default:
		return "", fmt.Errorf("%w for role %q", ErrUnknownDestination, role)
	}
}

func WithView(dest Destination, v View) RouterOption {
	return func(r *Router) {
		r.views[dest] = v
	}
}

func NewRouter(opts ...RouterOption) *Router {
	ret := &Router{
		views: make(map[Destination]View),
		log:   log.Default().Named("navigation"),
	}
	for _, o := range opts {
		o(ret)
	}
	return ret
}

//nolint:whitespace // editor/linter issue
func (r *Router) Navigate(
	ctx context.Context,
	dest Destination,
	params Params,
) error {
	r.mu.Lock()
	v, ok := r.views[dest]
	if ok {
		r.history = append(r.history, dest)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDestination, dest)
	}
	r.log.Debug("navigating", log.String("destination", string(dest)))
	return v.Show(ctx, params)
}

// History returns the destinations navigated to so far
func (r *Router) History() []Destination {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Destination(nil), r.history...)
}
