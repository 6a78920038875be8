package workflow

// Phase numbers with behaviour attached to them.
const (
	FirstPhase          = 1
	TrelloPhase         = 3
	DecisionPhase       = 5
	ImplementationPhase = 11
	FinalPhase          = 14
)

// Phase describes one step of the workflow.
type Phase struct {
	Number int
	// Name is what happens during the phase.
	Name string
	// CompletedLabel is shown once the phase is done.
	CompletedLabel string
	// Tracker is the short key used in reporting, e.g. "completed:review".
	Tracker string
}

// Phases lists the workflow phases in order.
var Phases = []Phase{
	{1, "Complete and Submit BCR form", "New Submission", "completed:submission"},
	{2, "Collate, initial review and Prioritize BCR", "BCR Prioritized", "completed:prioritisation"},
	{3, "Create BCR Trello card", "BCR Trello card Created", "completed:trello_created"},
	{4, "Review and analyse BCR (All Profession)", "BCR Reviewed", "completed:review"},
	{5, "BCR Governance Playback", "BCR Approved", "completed:governance"},
	{6, "Conduct Stakeholder Consultation", "Stakeholders Consulted", "completed:stakeholder"},
	{7, "Document Draft Business change requirements", "Business Change Requirements Documented", "completed:requirements"},
	{8, "Document Draft Business change version requirements", "Version requirements documented", "completed:version_requirements"},
	{9, "Document Draft Business change version communication requirements",
		"Version communication requirements documented", "completed:communication_requirements"},
	{10, "Approve Business Change Requirements", "Business Change Requirements Approved", "completed:approval"},
	{11, "Implement Business Change Requirement(s)", "Business change requirements implemented", "completed:implementation"},
	{12, "Release to Staging Environment", "Staging Release", "completed:staging"},
	{13, "Release to Pre-Production Environment", "Pre-Production Release", "completed:preprod"},
	{14, "Release to Production Environment", "Production Release", "completed:production"},
}

// PhaseByNumber returns the phase with the given number.
func PhaseByNumber(n int) (Phase, bool) {
	if n < FirstPhase || n > len(Phases) {
		return Phase{}, false
	}

	return Phases[n-1], true
}
