package share_fetch

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/share-fetch/generic"
)

var (
	ErrDuplicateProvider = errors.New("duplicate provider name")
	ErrInvalidProvider   = errors.New("invalid provider")
	ErrNoMatch           = errors.New("no provider matched the input")
	ErrUnknownProvider   = errors.New("unknown provider")
)

type MatchFunc = func(SourceLink) (Source, error)

// A Provider matches any link it knows how to handle, giving a Source that can be resolved and downloaded.
type Provider struct {
	Name  string
	Match MatchFunc
	// Priority of the matcher, lower (including negative) means matching earlier.
	Priority int16
}

// A Match is the result of a Provider successfully matching a link.
type Match struct {
	ProviderName string
	Source       Source
}

// A ProviderRegistry is a collection of Provider instances which can be used to try to match links.
type ProviderRegistry struct {
	providers   []*Provider
	providerMap map[string]*Provider
}

// NewProviderRegistry creates a ProviderRegistry containing the given providers.
func NewProviderRegistry(providers ...Provider) (*ProviderRegistry, error) {
	r := &ProviderRegistry{}
	for _, p := range providers {
		if err := r.Add(p); err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}
	}
	return r, nil
}

// Add registers a Provider with the ProviderRegistry. Provider.Name and Provider.Match must be set, and
// Provider.Name must be unique within the ProviderRegistry.
func (r *ProviderRegistry) Add(p Provider) error {
	if r.providerMap == nil {
		r.providerMap = make(map[string]*Provider)
	}
	if p.Name == "" || p.Match == nil {
		return ErrInvalidProvider
	}
	if _, ok := r.providerMap[p.Name]; ok {
		return ErrDuplicateProvider
	}
	r.providerMap[p.Name] = &p
	r.providers = append(r.providers, r.providerMap[p.Name])
	r.sortByPriority()
	return nil
}

// List returns the names of registered providers in priority order.
func (r *ProviderRegistry) List() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name)
	}
	return names
}

// Match classifies a string and tries it against each Provider in priority order. Unrecognized links fail with
// MalformedLink before any Provider sees them.
func (r *ProviderRegistry) Match(s string) (*Match, error) {
	link := Classify(s)
	if link.Kind == Unrecognized {
		return nil, NewError(MalformedLink, "match", link.Raw, ErrNoMatch)
	}
	var result error
	for _, p := range r.providers {
		if source, err := p.Match(link); source != nil && err == nil {
			match := &Match{
				ProviderName: p.Name,
				Source:       source,
			}
			return match, nil
		} else if err != nil {
			result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", p.Name)))
		}
	}
	if result == nil {
		result = ErrNoMatch
	}
	return nil, NewError(MalformedLink, "match", link.Raw, result)
}

// MatchWith will attempt to match a string against a specific provider.
func (r *ProviderRegistry) MatchWith(name string, s string) (*Match, error) {
	p, ok := r.providerMap[name]
	if !ok {
		return nil, r.unknownProvider(name)
	}
	link := Classify(s)
	if link.Kind == Unrecognized {
		return nil, NewError(MalformedLink, "match", link.Raw, ErrNoMatch)
	}
	source, err := p.Match(link)
	if source != nil && err == nil {
		return &Match{ProviderName: p.Name, Source: source}, nil
	}
	if err == nil {
		err = ErrNoMatch
	}
	return nil, NewError(MalformedLink, "match", link.Raw, fmt.Errorf("[%v] %w", p.Name, err))
}

// CheckProvider returns nil if name is a registered provider, otherwise an error listing the registered names.
func (r *ProviderRegistry) CheckProvider(name string) error {
	if _, ok := r.providerMap[name]; !ok {
		return r.unknownProvider(name)
	}
	return nil
}

func (r *ProviderRegistry) unknownProvider(name string) error {
	return fmt.Errorf("%w %q (available: %s)", ErrUnknownProvider, name, strings.Join(r.List(), ", "))
}

// MustAdd wraps Add but panics if there is an error.
func (r *ProviderRegistry) MustAdd(p Provider) {
	generic.Unwrap_(r.Add(p))
}

func (r *ProviderRegistry) sortByPriority() {
	sort.SliceStable(r.providers, func(i, j int) bool {
		return r.providers[i].Priority < r.providers[j].Priority
	})
}

var DefaultProviderRegistry ProviderRegistry
