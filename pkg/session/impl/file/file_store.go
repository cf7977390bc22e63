package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/mpapenbr/itslogin/log"
	"github.com/mpapenbr/itslogin/pkg/session"
	"github.com/mpapenbr/itslogin/pkg/session/factory"
)

var StoreTypeFile factory.StoreType = "file"

type (
	Option    func(*fileStore)
	fileStore struct {
		cfg *session.Config
		dir string
		log *log.Logger
	}
)

var _ session.Store = (*fileStore)(nil)

// New creates a store keeping the authId in <dir>/<key>.
// The default dir is <user config dir>/itslogin.
func New(common []session.Option, specific []Option) (session.Store, error) {
	ret := &fileStore{
		cfg: session.NewConfig(common...),
		log: log.Default().Named("session.file"),
	}
	for _, o := range specific {
		o(ret)
	}
	if ret.dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, err
		}
		ret.dir = filepath.Join(base, "itslogin")
	}
	if err := os.MkdirAll(ret.dir, 0o700); err != nil {
		return nil, err
	}
	return ret, nil
}

func WithDir(dir string) Option {
	return func(s *fileStore) {
		s.dir = dir
	}
}

func (s *fileStore) path() string {
	return filepath.Join(s.dir, s.cfg.Key)
}

func (s *fileStore) Get(ctx context.Context) (string, error) {
	authID, err := s.read()
	if err != nil {
		return "", err
	}
	if authID == "" {
		return "", session.ErrNoSession
	}
	return authID, nil
}

func (s *fileStore) read() (string, error) {
	data, err := os.ReadFile(s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *fileStore) Set(ctx context.Context, authID string) error {
	if authID == "" {
		return session.ErrInvalidAuthID
	}
	// write to a temp file first so readers never see partial content
	tmp, err := os.CreateTemp(s.dir, "."+s.cfg.Key+"-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(authID); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path()); err != nil {
		return err
	}
	s.log.Debug("stored authId", log.String("file", s.path()))
	return nil
}

func (s *fileStore) Clear(ctx context.Context) error {
	err := os.Remove(s.path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

//nolint:funlen // by design
func (s *fileStore) Watch(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// watch the directory, the file itself is replaced on every write
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, err
	}
	current, err := s.read()
	if err != nil {
		watcher.Close()
		return nil, err
	}
	ch := make(chan string, 1)
	ch <- current
	go func() {
		defer close(ch)
		defer watcher.Close()
		last := current
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != s.cfg.Key {
					continue
				}
				s.log.Debug("change detected",
					log.String("file", event.Name), log.Stringer("op", event.Op))
				val, rErr := s.read()
				if rErr != nil {
					s.log.Warn("could not read session file", log.ErrorField(rErr))
					continue
				}
				if val == last {
					continue
				}
				last = val
				select {
				case ch <- val:
				case <-ctx.Done():
					return
				}
			case wErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Error("watcher error", log.ErrorField(wErr))
			}
		}
	}()
	return ch, nil
}

func init() {
	factory.Register(StoreTypeFile, New)
}
