package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kitchensight/analytics-engine/pkg/database"
	"github.com/kitchensight/analytics-engine/pkg/models"
)

// MappingWriter persists the shift-type mappings discovery produces.
type MappingWriter interface {
	ReplaceAll(ctx context.Context, mappings []models.AbsenceTypeMapping) error
}

// ShiftTypeCensus is one source shift type with its usage.
type ShiftTypeCensus struct {
	ID            int64                  `json:"id"`
	Name          string                 `json:"name"`
	PortalName    string                 `json:"portal_name"`
	PayPercentage *float64               `json:"pay_percentage,omitempty"`
	ShiftCount    int64                  `json:"shift_count"`
	EarliestShift string                 `json:"earliest_shift,omitempty"`
	LatestShift   string                 `json:"latest_shift,omitempty"`
	Category      models.AbsenceCategory `json:"category"`
	CostBearer    models.CostBearer      `json:"cost_bearer"`
}

// PunchclockCoverage compares scheduled absence shifts against punch-clock
// records for one shift type.
type PunchclockCoverage struct {
	ShiftType       string `json:"shift_type"`
	TotalShifts     int64  `json:"total_shifts"`
	ClockedShifts   int64  `json:"clocked_shifts"`
	UnclockedShifts int64  `json:"unclocked_shifts"`
}

// EmployeeGroupCensus is one employee group with its labor volume.
type EmployeeGroupCensus struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	PortalName    string  `json:"portal_name"`
	EmployeeCount int64   `json:"employee_count"`
	TotalHours    float64 `json:"total_hours"`
}

// PayRateCoverage summarizes how many clocked employees carry a wage rate.
type PayRateCoverage struct {
	TotalCombos int64 `json:"total_employee_group_combos"`
	WithPayRate int64 `json:"with_pay_rate"`
	WithSalary  int64 `json:"with_salary"`
	WithAnyRate int64 `json:"with_any_rate"`
	WithoutRate int64 `json:"without_rate"`
}

// Summary is the operator-facing verdict of a discovery run.
type Summary struct {
	HasAbsenceData    bool   `json:"has_absence_data"`
	AbsenceTypesFound int    `json:"absence_types_found"`
	Recommendation    string `json:"recommendation"`
}

// Report is the full discovery output, serialized to JSON for operators and
// partially persisted as absence_type_mapping rows.
type Report struct {
	GeneratedAt     time.Time             `json:"generated_at"`
	ShiftTypes      []ShiftTypeCensus     `json:"shift_types"`
	AbsenceCoverage []PunchclockCoverage  `json:"absence_vs_punchclock"`
	EmployeeGroups  []EmployeeGroupCensus `json:"employee_groups"`
	PayRates        PayRateCoverage       `json:"pay_rate_coverage"`
	Summary         Summary               `json:"summary"`
}

// Service runs the full discovery battery against the source store.
type Service interface {
	Run(ctx context.Context) (*Report, error)
}

type service struct {
	source       database.Querier
	mappings     MappingWriter
	rules        *RuleSet
	sourcePrefix string
	reportPath   string
	logger       *zap.Logger
}

// NewService creates a discovery service. reportPath is where the JSON
// report lands; empty disables the file. mappings may be nil when the target
// warehouse is unavailable (probe-only invocations).
func NewService(source database.Querier, mappings MappingWriter, rules *RuleSet, sourceAlias, reportPath string, logger *zap.Logger) Service {
	prefix := ""
	if sourceAlias != "" {
		prefix = sourceAlias + "."
	}
	return &service{
		source:       source,
		mappings:     mappings,
		rules:        rules,
		sourcePrefix: prefix,
		reportPath:   reportPath,
		logger:       logger.Named("discovery"),
	}
}

func (s *service) Run(ctx context.Context) (*Report, error) {
	report := &Report{GeneratedAt: time.Now().UTC()}

	shiftTypes, err := s.censusShiftTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("shift type census failed: %w", err)
	}
	report.ShiftTypes = shiftTypes

	coverage, err := s.absenceVsPunchclock(ctx)
	if err != nil {
		return nil, fmt.Errorf("absence coverage probe failed: %w", err)
	}
	report.AbsenceCoverage = coverage

	groups, err := s.censusEmployeeGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("employee group census failed: %w", err)
	}
	report.EmployeeGroups = groups

	payRates, err := s.payRateCoverage(ctx)
	if err != nil {
		return nil, fmt.Errorf("pay rate probe failed: %w", err)
	}
	report.PayRates = payRates

	mappedCount := 0
	hasAbsence := false
	for _, st := range report.ShiftTypes {
		if st.Category == models.AbsenceUnmapped {
			continue
		}
		mappedCount++
		if st.ShiftCount > 0 {
			hasAbsence = true
		}
	}
	report.Summary = Summary{
		HasAbsenceData:    hasAbsence,
		AbsenceTypesFound: mappedCount,
	}
	if hasAbsence {
		report.Summary.Recommendation = "Absence data found - sick leave cubes can be populated."
	} else {
		report.Summary.Recommendation = "No absence data in shifts - sick leave cubes will be created empty."
	}

	if s.mappings != nil {
		if err := s.persistMappings(ctx, report.ShiftTypes); err != nil {
			return nil, err
		}
	}

	if s.reportPath != "" {
		if err := s.writeReport(report); err != nil {
			return nil, err
		}
	}

	s.logger.Info("Discovery completed",
		zap.Bool("hasAbsenceData", hasAbsence),
		zap.Int("shiftTypes", len(report.ShiftTypes)),
		zap.Int("mappedTypes", mappedCount),
		zap.Int("employeeGroups", len(report.EmployeeGroups)))
	return report, nil
}

func (s *service) censusShiftTypes(ctx context.Context) ([]ShiftTypeCensus, error) {
	query := fmt.Sprintf(`
		SELECT st.id, st.name, st.pay_percentage, st.portal_name,
		       COUNT(s.id) AS shift_count,
		       MIN(s.start_date_time) AS earliest_shift,
		       MAX(s.start_date_time) AS latest_shift
		FROM %[1]splanday.shift_types st
		LEFT JOIN %[1]splanday.shifts s
			ON s.shift_type_id = st.id AND s.portal_name = st.portal_name
		GROUP BY st.id, st.name, st.pay_percentage, st.portal_name
		ORDER BY shift_count DESC`, s.sourcePrefix)

	rows, err := s.source.FetchAll(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]ShiftTypeCensus, 0, len(rows))
	for _, row := range rows {
		name, _ := row["name"].(string)
		category, cost := s.rules.Classify(name)
		census := ShiftTypeCensus{
			ID:         asInt64(row["id"]),
			Name:       name,
			ShiftCount: asInt64(row["shift_count"]),
			Category:   category,
			CostBearer: cost,
		}
		census.PortalName, _ = row["portal_name"].(string)
		if pct := asFloat64(row["pay_percentage"]); pct != nil {
			census.PayPercentage = pct
		}
		census.EarliestShift = asTimestamp(row["earliest_shift"])
		census.LatestShift = asTimestamp(row["latest_shift"])
		out = append(out, census)
	}
	return out, nil
}

func (s *service) absenceVsPunchclock(ctx context.Context) ([]PunchclockCoverage, error) {
	query := fmt.Sprintf(`
		SELECT st.name AS shift_type_name,
		       COUNT(s.id) AS total_shifts,
		       COUNT(pc.id) AS clocked_shifts,
		       COUNT(s.id) - COUNT(pc.id) AS unclocked_shifts
		FROM %[1]splanday.shifts s
		JOIN %[1]splanday.shift_types st
			ON s.shift_type_id = st.id AND s.portal_name = st.portal_name
		LEFT JOIN %[1]splanday.punchclock_shifts pc
			ON pc.employee_id = s.employee_id
			AND pc.business_date = CAST(s.start_date_time AS DATE)
			AND pc.portal_name = s.portal_name
		WHERE st.name ILIKE '%%syk%%'
		   OR st.name ILIKE '%%egenmelding%%'
		   OR st.name ILIKE '%%frav%%'
		   OR st.name ILIKE '%%barn%%'
		   OR st.name ILIKE '%%ferie%%'
		   OR st.name ILIKE '%%permisjon%%'
		GROUP BY st.name
		ORDER BY total_shifts DESC`, s.sourcePrefix)

	rows, err := s.source.FetchAll(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]PunchclockCoverage, 0, len(rows))
	for _, row := range rows {
		cov := PunchclockCoverage{
			TotalShifts:     asInt64(row["total_shifts"]),
			ClockedShifts:   asInt64(row["clocked_shifts"]),
			UnclockedShifts: asInt64(row["unclocked_shifts"]),
		}
		cov.ShiftType, _ = row["shift_type_name"].(string)
		out = append(out, cov)
	}
	return out, nil
}

func (s *service) censusEmployeeGroups(ctx context.Context) ([]EmployeeGroupCensus, error) {
	query := fmt.Sprintf(`
		SELECT eg.id, eg.name, eg.portal_name,
		       COUNT(DISTINCT pc.employee_id) AS employee_count,
		       SUM(pc.hours_worked) AS total_hours
		FROM %[1]splanday.employee_groups eg
		LEFT JOIN %[1]splanday.punchclock_shifts pc
			ON pc.employee_group_id = eg.id AND pc.portal_name = eg.portal_name
		GROUP BY eg.id, eg.name, eg.portal_name
		ORDER BY total_hours DESC NULLS LAST`, s.sourcePrefix)

	rows, err := s.source.FetchAll(ctx, query)
	if err != nil {
		return nil, err
	}

	out := make([]EmployeeGroupCensus, 0, len(rows))
	for _, row := range rows {
		census := EmployeeGroupCensus{
			ID:            asInt64(row["id"]),
			EmployeeCount: asInt64(row["employee_count"]),
		}
		census.Name, _ = row["name"].(string)
		census.PortalName, _ = row["portal_name"].(string)
		if hours := asFloat64(row["total_hours"]); hours != nil {
			census.TotalHours = *hours
		}
		out = append(out, census)
	}
	return out, nil
}

func (s *service) payRateCoverage(ctx context.Context) (PayRateCoverage, error) {
	query := fmt.Sprintf(`
		WITH pc_employees AS (
			SELECT DISTINCT employee_id, employee_group_id, portal_name
			FROM %[1]splanday.punchclock_shifts
		),
		rate_match AS (
			SELECT pe.*,
			       pr.hourly_rate IS NOT NULL AS has_pay_rate,
			       sal.effective_hourly_rate IS NOT NULL AS has_salary
			FROM pc_employees pe
			LEFT JOIN %[1]splanday.pay_rates pr
				ON pr.employee_id = pe.employee_id
				AND pr.employee_group_id = pe.employee_group_id
				AND pr.portal_name = pe.portal_name
			LEFT JOIN %[1]splanday.salaries sal
				ON sal.employee_id = pe.employee_id
				AND sal.portal_name = pe.portal_name
		)
		SELECT
			COUNT(*) AS total_employee_group_combos,
			SUM(CASE WHEN has_pay_rate THEN 1 ELSE 0 END) AS with_pay_rate,
			SUM(CASE WHEN has_salary THEN 1 ELSE 0 END) AS with_salary,
			SUM(CASE WHEN has_pay_rate OR has_salary THEN 1 ELSE 0 END) AS with_any_rate,
			SUM(CASE WHEN NOT has_pay_rate AND NOT has_salary THEN 1 ELSE 0 END) AS without_rate
		FROM rate_match`, s.sourcePrefix)

	row, err := s.source.FetchOne(ctx, query)
	if err != nil {
		return PayRateCoverage{}, err
	}
	if row == nil {
		return PayRateCoverage{}, nil
	}
	return PayRateCoverage{
		TotalCombos: asInt64(row["total_employee_group_combos"]),
		WithPayRate: asInt64(row["with_pay_rate"]),
		WithSalary:  asInt64(row["with_salary"]),
		WithAnyRate: asInt64(row["with_any_rate"]),
		WithoutRate: asInt64(row["without_rate"]),
	}, nil
}

func (s *service) persistMappings(ctx context.Context, census []ShiftTypeCensus) error {
	mappings := make([]models.AbsenceTypeMapping, 0, len(census))
	for _, st := range census {
		if st.Category == models.AbsenceUnmapped {
			continue
		}
		mappings = append(mappings, models.AbsenceTypeMapping{
			ShiftTypeID: st.ID,
			PortalName:  st.PortalName,
			Label:       st.Name,
			Category:    st.Category,
			CostBearer:  st.CostBearer,
			ShiftCount:  st.ShiftCount,
		})
	}
	if err := s.mappings.ReplaceAll(ctx, mappings); err != nil {
		return fmt.Errorf("failed to persist absence mappings: %w", err)
	}
	return nil
}

func (s *service) writeReport(report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode discovery report: %w", err)
	}
	if err := os.WriteFile(s.reportPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write discovery report %s: %w", s.reportPath, err)
	}
	s.logger.Info("Wrote discovery report", zap.String("path", s.reportPath))
	return nil
}

func asFloat64(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	default:
		return nil
	}
}

func asTimestamp(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case string:
		return t
	default:
		return ""
	}
}
