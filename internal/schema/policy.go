package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrNoPrimaryKeyCandidate is returned when none of a table's key candidates
// is present in the header.
var ErrNoPrimaryKeyCandidate = errors.New("no primary key candidate")

// AddressesTable is the table whose rows are keyed by address rather than by person.
const AddressesTable = "personas_domicilios"

// Policies maps table names to ordered primary-key candidates. The first
// candidate present in a file's header becomes the key.
//
// Tables without an entry use the default list. Policies is safe for
// concurrent use.
type Policies struct {
	mu      sync.RWMutex
	byTable map[string][]string
	def     []string
}

// DefaultPolicies returns the built-in key rules:
//   - personas_domicilios: id_domicilio, id_domicilios, id_persona, codigo
//   - every other table:   id_persona, codigo
func DefaultPolicies() *Policies {
	return &Policies{
		byTable: map[string][]string{
			AddressesTable: {"id_domicilio", "id_domicilios", "id_persona", "codigo"},
		},
		def: []string{"id_persona", "codigo"},
	}
}

// Set replaces the candidates for table. Names are lower-cased to match
// normalized headers.
func (p *Policies) Set(table string, candidates []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byTable[strings.ToLower(table)] = lowerAll(candidates)
}

// SetDefault replaces the candidates used by tables without an entry.
func (p *Policies) SetDefault(candidates []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.def = lowerAll(candidates)
}

// Candidates returns a copy of the ordered candidates for table.
func (p *Policies) Candidates(table string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if c, ok := p.byTable[strings.ToLower(table)]; ok {
		return append([]string(nil), c...)
	}
	return append([]string(nil), p.def...)
}

// Tables lists tables with an explicit policy, sorted.
func (p *Policies) Tables() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.byTable))
	for t := range p.byTable {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SelectKey returns the first candidate for table present in header.
func (p *Policies) SelectKey(table string, header []string) (string, error) {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[h] = struct{}{}
	}
	cands := p.Candidates(table)
	for _, c := range cands {
		if _, ok := present[c]; ok {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: table %s wants one of [%s]", ErrNoPrimaryKeyCandidate, table, strings.Join(cands, ", "))
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
