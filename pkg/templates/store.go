// Package templates holds one parameterized query definition per derived
// table and renders it for a given run. Substitution is purely textual: all
// substituted values are operator-controlled configuration, never end-user
// input, so the store trusts its inputs.
package templates

import (
	"embed"
	"fmt"
	"regexp"
	"strings"

	"github.com/kitchensight/analytics-engine/pkg/apperrors"
	"github.com/kitchensight/analytics-engine/pkg/models"
)

//go:embed sql
var sqlFS embed.FS

// leftoverPlaceholder flags placeholders that survived substitution.
var leftoverPlaceholder = regexp.MustCompile(`\{[A-Za-z_]+\}`)

// RenderedQuery is the executable form of one table's template.
type RenderedQuery struct {
	Table      string
	Statements []string
}

// SchemaStatements returns only the CREATE statements, used when a
// discovery-gated table is populated schema-only: the table must exist with
// its declared fixed columns even when zero rows qualify.
func (r *RenderedQuery) SchemaStatements() []string {
	var out []string
	for _, stmt := range r.Statements {
		if leadingKeyword(stmt) == "CREATE" {
			out = append(out, stmt)
		}
	}
	return out
}

// leadingKeyword returns the statement's first SQL keyword, skipping comment
// lines, so classification never trips on column names like created_at.
func leadingKeyword(stmt string) string {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if i := strings.IndexAny(line, " \t("); i > 0 {
			line = line[:i]
		}
		return strings.ToUpper(line)
	}
	return ""
}

// Store renders query templates for the derived tables.
type Store struct {
	defs         map[string]*models.TableDefinition
	order        []string
	sourcePrefix string
	targetSchema string
}

// NewStore creates a template store. sourceAlias is the database prefix for
// source relations; empty means source and target share a warehouse and the
// prefix collapses entirely. targetSchema is the schema holding all derived
// tables.
func NewStore(definitions []models.TableDefinition, sourceAlias, targetSchema string) *Store {
	defs := make(map[string]*models.TableDefinition, len(definitions))
	order := make([]string, 0, len(definitions))
	for i := range definitions {
		defs[definitions[i].Name] = &definitions[i]
		order = append(order, definitions[i].Name)
	}

	prefix := ""
	if sourceAlias != "" {
		prefix = sourceAlias + "."
	}
	return &Store{
		defs:         defs,
		order:        order,
		sourcePrefix: prefix,
		targetSchema: targetSchema,
	}
}

// Definitions returns all table definitions in declaration order.
func (s *Store) Definitions() []models.TableDefinition {
	out := make([]models.TableDefinition, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.defs[name])
	}
	return out
}

// Render produces the executable statements for one table.
//
// The date-filter placeholder becomes an empty string for full mode and a
// bounded predicate for incremental mode. Tier-3 snapshot tables aggregate
// trailing windows relative to now, so they are always rendered as full
// regardless of mode.
func (s *Store) Render(table string, mode models.RefreshMode, dateRange models.DateRange) (*RenderedQuery, error) {
	def, ok := s.defs[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrTemplateNotFound, table)
	}

	raw, err := sqlFS.ReadFile("sql/" + def.TemplateFile)
	if err != nil {
		return nil, &apperrors.RenderError{Table: table, Reason: fmt.Sprintf("missing template file %s", def.TemplateFile)}
	}

	rendered := strings.ReplaceAll(string(raw), "{SOURCE_DB}.", s.sourcePrefix)
	rendered = strings.ReplaceAll(rendered, "{TARGET_SCHEMA}", s.targetSchema)
	rendered = strings.ReplaceAll(rendered, "{date_filter}", s.dateFilter(def, mode, dateRange))

	if m := leftoverPlaceholder.FindString(rendered); m != "" {
		return nil, &apperrors.RenderError{Table: table, Reason: fmt.Sprintf("unknown placeholder %s", m)}
	}

	return &RenderedQuery{Table: table, Statements: splitStatements(rendered)}, nil
}

// dateFilter builds the incremental predicate. Inclusive start, exclusive
// end; an unbounded range renders only the lower bound.
func (s *Store) dateFilter(def *models.TableDefinition, mode models.RefreshMode, dateRange models.DateRange) string {
	if mode != models.ModeIncremental || dateRange.IsZero() {
		return ""
	}
	if def.Tier == models.TierSnapshot || def.DateColumn == "" {
		return ""
	}

	filter := fmt.Sprintf("AND %s >= '%s'", def.DateColumn, dateRange.From.Format("2006-01-02"))
	if dateRange.Bounded() {
		filter += fmt.Sprintf(" AND %s < '%s'", def.DateColumn, dateRange.To.Format("2006-01-02"))
	}
	return filter
}

// splitStatements splits multi-statement SQL on semicolons and drops
// comment-only blocks.
func splitStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	statements := make([]string, 0, len(parts))
	for _, part := range parts {
		stmt := strings.TrimSpace(part)
		if stmt == "" || isCommentOnly(stmt) {
			continue
		}
		statements = append(statements, stmt)
	}
	return statements
}

func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
