// Package graph builds the execution plan for a refresh run from declared
// table metadata. Dependencies are explicit on each TableDefinition; the
// builder never parses query text, which keeps it dialect-independent.
package graph

import (
	"fmt"
	"sort"

	"github.com/kitchensight/analytics-engine/pkg/apperrors"
	"github.com/kitchensight/analytics-engine/pkg/models"
)

// Plan is a deterministic execution order over the table definitions.
// Repeated builds on unchanged definitions always produce the same order;
// the audit log and test assertions depend on that.
type Plan struct {
	// Order is the full topological order: every table appears after all
	// of its transitive dependencies. Ties are broken by (tier, name).
	Order []string

	// Waves groups the order into independent batches: every table in
	// wave i depends only on tables in waves < i. Tables in the same wave
	// may run concurrently.
	Waves [][]string

	defs map[string]*models.TableDefinition
}

// Definition returns the definition for a scheduled table.
func (p *Plan) Definition(name string) (*models.TableDefinition, bool) {
	def, ok := p.defs[name]
	return def, ok
}

// Upstreams returns the declared dependencies of a scheduled table.
func (p *Plan) Upstreams(name string) []string {
	if def, ok := p.defs[name]; ok {
		return def.Upstreams
	}
	return nil
}

// Build validates the definition set and produces the execution plan.
// A cycle, an unknown upstream, or a tier-ordering violation is a fatal
// configuration error: no table may execute when Build fails.
func Build(definitions []models.TableDefinition) (*Plan, error) {
	defs := make(map[string]*models.TableDefinition, len(definitions))
	for i := range definitions {
		def := &definitions[i]
		if _, dup := defs[def.Name]; dup {
			return nil, fmt.Errorf("duplicate table definition %q", def.Name)
		}
		defs[def.Name] = def
	}

	// Validate edges before sorting, so configuration errors are reported
	// by kind rather than surfacing as a spurious cycle.
	for _, def := range definitions {
		for _, up := range def.Upstreams {
			upDef, ok := defs[up]
			if !ok {
				return nil, &apperrors.UnknownUpstreamError{Table: def.Name, Upstream: up}
			}
			if upDef.Tier > def.Tier {
				return nil, &apperrors.TierOrderingError{Table: def.Name, Upstream: up}
			}
		}
	}

	// Kahn's algorithm with a sorted ready list: ties broken by declared
	// tier, then name.
	indegree := make(map[string]int, len(defs))
	dependents := make(map[string][]string, len(defs))
	for _, def := range definitions {
		indegree[def.Name] = len(def.Upstreams)
		for _, up := range def.Upstreams {
			dependents[up] = append(dependents[up], def.Name)
		}
	}

	var ready []string
	for _, def := range definitions {
		if indegree[def.Name] == 0 {
			ready = append(ready, def.Name)
		}
	}

	wave := make(map[string]int, len(defs))
	order := make([]string, 0, len(defs))
	for len(ready) > 0 {
		sortByTierThenName(ready, defs)
		next := ready[0]
		ready = ready[1:]
		order = append(order, next)

		for _, dep := range dependents[next] {
			if wave[next]+1 > wave[dep] {
				wave[dep] = wave[next] + 1
			}
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(order) < len(defs) {
		var stuck []string
		for name, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return nil, &apperrors.CycleError{Tables: stuck}
	}

	maxWave := 0
	for _, w := range wave {
		if w > maxWave {
			maxWave = w
		}
	}
	waves := make([][]string, maxWave+1)
	for _, name := range order {
		w := wave[name]
		waves[w] = append(waves[w], name)
	}

	return &Plan{Order: order, Waves: waves, defs: defs}, nil
}

func sortByTierThenName(names []string, defs map[string]*models.TableDefinition) {
	sort.Slice(names, func(i, j int) bool {
		a, b := defs[names[i]], defs[names[j]]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		return a.Name < b.Name
	})
}
