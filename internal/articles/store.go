package articles

import (
	"context"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/safepreview/internal/errors"
	"github.com/conneroisu/safepreview/internal/logging"
	"github.com/conneroisu/safepreview/internal/sanitizer"
)

// Store indexes the articles of a filesystem by slug.
type Store struct {
	fsys      fs.FS
	sanitizer sanitizer.Sanitizer
	logger    logging.Logger

	mu         sync.RWMutex
	bySlug     map[string]*Article
	ordered    []*Article
	showDrafts bool
}

// NewStore creates an empty store over fsys. Call Reload to populate it.
func NewStore(fsys fs.FS, s sanitizer.Sanitizer, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Store{
		fsys:      fsys,
		sanitizer: s,
		logger:    logger.WithComponent("articles"),
		bySlug:    make(map[string]*Article),
	}
}

// ShowDrafts includes draft articles in List and Get.
func (s *Store) ShowDrafts(show bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showDrafts = show
}

// Reload re-reads every .md file. A file that fails to parse is logged and
// skipped; the rest of the index is still replaced.
func (s *Store) Reload(ctx context.Context) error {
	bySlug := make(map[string]*Article)

	err := fs.WalkDir(s.fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(path.Ext(name), ".md") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := fs.ReadFile(s.fsys, name)
		if err != nil {
			s.logger.Warn(ctx, err, "Skipping unreadable article", "path", name)
			return nil
		}

		a, err := Parse(name, data, s.sanitizer)
		if err != nil {
			s.logger.Warn(ctx, err, "Skipping invalid article", "path", name)
			return nil
		}

		if prev, dup := bySlug[a.Slug]; dup {
			s.logger.Warn(ctx, nil, "Duplicate article slug, keeping first",
				"slug", a.Slug, "kept", prev.Path, "skipped", a.Path)
			return nil
		}
		bySlug[a.Slug] = a

		return nil
	})
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeInternalError, "loading articles", err)
	}

	ordered := make([]*Article, 0, len(bySlug))
	for _, a := range bySlug {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].Date.Equal(ordered[j].Date) {
			return ordered[i].Date.After(ordered[j].Date)
		}
		return ordered[i].Title < ordered[j].Title
	})

	s.mu.Lock()
	s.bySlug = bySlug
	s.ordered = ordered
	s.mu.Unlock()

	s.logger.Info(ctx, "Articles loaded", "count", len(ordered))

	return nil
}

// Get returns the article for slug.
func (s *Store) Get(slug string) (*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.bySlug[slug]
	if !ok || (a.Draft && !s.showDrafts) {
		return nil, errors.NewValidationError(errors.ErrCodeArticleNotFound, "article not found: "+slug)
	}

	return a, nil
}

// List returns the articles newest first.
func (s *Store) List() []*Article {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Article, 0, len(s.ordered))
	for _, a := range s.ordered {
		if a.Draft && !s.showDrafts {
			continue
		}
		out = append(out, a)
	}

	return out
}

// Tags returns every tag in use with its article count.
func (s *Store) Tags() map[string]int {
	tags := make(map[string]int)
	for _, a := range s.List() {
		for _, t := range a.Tags {
			tags[t]++
		}
	}

	return tags
}
