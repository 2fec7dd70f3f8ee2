package normalize

import (
	_ "embed"
	"os"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/matheusluizig/imovelguide-integracao-sub000/am"
	"github.com/matheusluizig/imovelguide-integracao-sub000/errors"
)

//go:embed lookups.yaml
var defaultLookupsYAML []byte

// Entry is one classification value and the keywords that select it.
type Entry struct {
	ID       int      `yaml:"id"`
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Table maps free text to an id by keyword.
type Table struct {
	Fallback int     `yaml:"fallback"`
	Entries  []Entry `yaml:"entries"`

	compiled []keyword
}

type keyword struct {
	text string
	id   int
}

// Lookups are the classification tables used by the engine.
type Lookups struct {
	PropertyTypes Table `yaml:"property_types"`
	Guarantees    Table `yaml:"guarantees"`
	Statuses      Table `yaml:"statuses"`
	Features      Table `yaml:"features"`
}

// Match returns the id whose keyword matches text. Keywords match at a word
// start of the folded text and the longest matching keyword wins. ok is false
// when nothing matched; the fallback is returned then.
func (t *Table) Match(text string) (id int, ok bool) {
	padded := " " + Fold(text)
	for _, k := range t.compiled {
		if strings.Contains(padded, " "+k.text) {
			return k.id, true
		}
	}
	return t.Fallback, false
}

// Name returns the display name of id.
func (t *Table) Name(id int) string {
	for _, e := range t.Entries {
		if e.ID == id {
			return e.Name
		}
	}
	return ""
}

func (t *Table) compile() {
	t.compiled = t.compiled[:0]
	for _, e := range t.Entries {
		for _, kw := range e.Keywords {
			if f := Fold(kw); f != "" {
				t.compiled = append(t.compiled, keyword{text: f, id: e.ID})
			}
		}
	}
	sort.SliceStable(t.compiled, func(i, j int) bool {
		return len(t.compiled[i].text) > len(t.compiled[j].text)
	})
}

func (l *Lookups) compile() {
	for _, t := range []*Table{&l.PropertyTypes, &l.Guarantees, &l.Statuses, &l.Features} {
		t.compile()
	}
}

// DefaultLookups returns the embedded tables.
func DefaultLookups() (*Lookups, error) {
	var l Lookups
	if err := yaml.Unmarshal(defaultLookupsYAML, &l); err != nil {
		return nil, errors.Wrap(err, "parse embedded lookups")
	}
	l.compile()
	return &l, nil
}

// LoadLookups reads an override file on top of the embedded tables. A table
// present in the file replaces the embedded one entirely; absent tables keep
// their defaults. An empty path returns the defaults.
func LoadLookups(path string) (*Lookups, error) {
	l, err := DefaultLookups()
	if err != nil || path == "" {
		return l, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read lookups %s", path)
	}
	var override Lookups
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, errors.WithHint(errors.Wrapf(err, "parse lookups %s", path),
			"expected tables property_types, guarantees, statuses, features with fallback and entries")
	}
	for _, pair := range []struct{ dst, src *Table }{
		{&l.PropertyTypes, &override.PropertyTypes},
		{&l.Guarantees, &override.Guarantees},
		{&l.Statuses, &override.Statuses},
		{&l.Features, &override.Features},
	} {
		if len(pair.src.Entries) > 0 {
			*pair.dst = *pair.src
		}
	}
	l.compile()
	return l, nil
}

// LookupSet holds the current tables and swaps them on reload. Readers take
// a snapshot per run so a reload never changes tables mid-run.
type LookupSet struct {
	mu      sync.RWMutex
	current *Lookups
}

// NewLookupSet wraps l.
func NewLookupSet(l *Lookups) *LookupSet {
	return &LookupSet{current: l}
}

// Get returns the current tables.
func (s *LookupSet) Get() *Lookups {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace swaps in new tables.
func (s *LookupSet) Replace(l *Lookups) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = l
}

// WatchLookups reloads path into s whenever it changes. A file that fails to
// parse is logged and the previous tables stay in place.
func WatchLookups(s *LookupSet, path string, logger *zap.SugaredLogger) (*am.FileWatcher, error) {
	w, err := am.NewFileWatcher(path, logger)
	if err != nil {
		return nil, err
	}
	w.OnChange(func(p string) error {
		l, err := LoadLookups(p)
		if err != nil {
			return err
		}
		s.Replace(l)
		logger.Infow("Lookup tables reloaded", "path", p)
		return nil
	})
	w.Start()
	return w, nil
}
