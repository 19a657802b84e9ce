package models

// ============================================================================
// Absence Category
// ============================================================================

// AbsenceCategory classifies a workforce shift type for sick-leave analytics.
type AbsenceCategory string

const (
	// AbsenceEgenmelding is self-certified sick leave.
	AbsenceEgenmelding AbsenceCategory = "egenmelding"
	// AbsenceSykemelding is doctor-certified sick leave.
	AbsenceSykemelding AbsenceCategory = "sykemelding"
	// AbsenceChildSick is leave to care for a sick child.
	AbsenceChildSick AbsenceCategory = "child_sick"
	// AbsenceVacation covers vacation and general leave-of-absence codes.
	AbsenceVacation AbsenceCategory = "vacation"
	// AbsenceOther catches remaining absence-like codes.
	AbsenceOther AbsenceCategory = "other_absence"
	// AbsenceUnmapped marks labels no rule matched. Unmapped rows are
	// excluded from all cost and sick-rate computations.
	AbsenceUnmapped AbsenceCategory = "unmapped"
)

// ============================================================================
// Cost Bearer
// ============================================================================

// CostBearer identifies which party financially bears an absence record.
type CostBearer string

const (
	// CostBearerEmployer: paid by the employer (e.g. egenmelding days,
	// the employer-funded window of sykemelding).
	CostBearerEmployer CostBearer = "employer"
	// CostBearerNAV: reimbursed by the national insurance program.
	CostBearerNAV CostBearer = "nav"
	// CostBearerUnpaid: unpaid leave.
	CostBearerUnpaid CostBearer = "unpaid"
	// CostBearerNone: not a cost-bearing record (e.g. unmapped).
	CostBearerNone CostBearer = "none"
)

// ============================================================================
// Absence Type Mapping
// ============================================================================

// AbsenceTypeMapping maps one source shift type to its absence category and
// cost bearer. Produced by applying the ordered pattern rules to source
// labels; first matching rule wins.
type AbsenceTypeMapping struct {
	ShiftTypeID int64
	PortalName  string
	Label       string
	Category    AbsenceCategory
	CostBearer  CostBearer
	ShiftCount  int64
}

// IsMapped reports whether any rule matched the source label.
func (m *AbsenceTypeMapping) IsMapped() bool {
	return m.Category != AbsenceUnmapped
}
