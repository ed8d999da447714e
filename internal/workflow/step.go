// Package workflow implements the step workflow engine: an ordered plan of
// named publish steps, a reducer that derives step enablement from
// dependency success, and a single-writer engine that executes steps
// sequentially with optional auto-progression.
package workflow

import "fmt"

// StepName identifies one step of a publish plan.
type StepName string

const (
	// StepCreatePrimary creates the content's own topic. Always present.
	StepCreatePrimary StepName = "createPrimaryResource"
	// StepUploadAsset uploads the attached binary. Present only when a
	// binary asset is attached.
	StepUploadAsset StepName = "uploadBinaryAsset"
	// StepAnnounce sends the identifying first message into the primary topic.
	StepAnnounce StepName = "announce"
	// StepCreateList lazily creates the profile's list topic. First-time
	// path only.
	StepCreateList StepName = "createListResource"
	// StepAddToList seeds or appends the new item into the list topic.
	// First-time path only.
	StepAddToList StepName = "addToListResource"
	// StepLinkProfile writes the new list topic id into the profile record.
	// First-time path only.
	StepLinkProfile StepName = "updateBackReference"
	// StepUpdateList appends to an already-existing list topic. Subsequent
	// path only.
	StepUpdateList StepName = "updateExistingListResource"
)

// Status is a step's lifecycle state.
type Status int

const (
	// StatusIdle means the step has not run (or was reset by a retry).
	StatusIdle Status = iota
	// StatusLoading means the step is executing.
	StatusLoading
	// StatusSuccess means the step's effect landed. Terminal.
	StatusSuccess
	// StatusError means the last execution failed; retry returns to idle.
	StatusError
)

// String returns the status's stable name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Step is one entry of a Plan.
type Step struct {
	Name   StepName
	Status Status

	// Disabled is true until every dependency has succeeded, while the step
	// is loading, and once it has succeeded. Only an enabled idle or error
	// step may be run.
	Disabled bool

	// Message holds the last failure's human-readable text, cleared on retry.
	Message string
}

// Plan is the ordered step list for one publish workflow. The order is the
// dependency order: a step depends on every step before it.
type Plan []Step

// PlanInput feeds plan construction.
type PlanInput struct {
	// HasBinaryAsset is true when the draft carries a media file.
	HasBinaryAsset bool

	// HasExistingListTopic is true when the owning profile already has the
	// target list topic, selecting the one-step list mutation instead of the
	// three-step first-time path.
	HasExistingListTopic bool
}

// BuildPlan constructs the ordered plan for a publish. The first step starts
// enabled; everything else is disabled until its dependencies succeed.
func BuildPlan(in PlanInput) Plan {
	names := []StepName{StepCreatePrimary}
	if in.HasBinaryAsset {
		names = append(names, StepUploadAsset)
	}
	names = append(names, StepAnnounce)
	if in.HasExistingListTopic {
		names = append(names, StepUpdateList)
	} else {
		names = append(names, StepCreateList, StepAddToList, StepLinkProfile)
	}

	plan := make(Plan, len(names))
	for i, n := range names {
		plan[i] = Step{Name: n, Status: StatusIdle, Disabled: i > 0}
	}
	return plan
}

// index returns the position of name in the plan, or -1.
func (p Plan) index(name StepName) int {
	for i := range p {
		if p[i].Name == name {
			return i
		}
	}
	return -1
}

// Step returns a copy of the named step.
func (p Plan) Step(name StepName) (Step, bool) {
	i := p.index(name)
	if i < 0 {
		return Step{}, false
	}
	return p[i], true
}

// Clone returns an independent copy.
func (p Plan) Clone() Plan {
	return append(Plan(nil), p...)
}

// Complete reports whether every step has succeeded.
func (p Plan) Complete() bool {
	for i := range p {
		if p[i].Status != StatusSuccess {
			return false
		}
	}
	return len(p) > 0
}

// reduce recomputes every step's Disabled flag from the current statuses.
// It is the single place enablement is derived, invoked after every status
// change rather than only at construction time, so out-of-band retries can
// never leave a stale flag behind.
func (p Plan) reduce() {
	depsMet := true
	for i := range p {
		s := &p[i]
		switch {
		case s.Status == StatusLoading, s.Status == StatusSuccess:
			s.Disabled = true
		default:
			s.Disabled = !depsMet
		}
		depsMet = depsMet && s.Status == StatusSuccess
	}
}

// firstRunnable returns the first enabled idle step, or -1.
func (p Plan) firstRunnable() int {
	for i := range p {
		if p[i].Status == StatusIdle && !p[i].Disabled {
			return i
		}
	}
	return -1
}

// firstErrored returns the first enabled errored step, or -1.
func (p Plan) firstErrored() int {
	for i := range p {
		if p[i].Status == StatusError && !p[i].Disabled {
			return i
		}
	}
	return -1
}
