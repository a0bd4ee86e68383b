package model

import "time"

type Phase string

const (
	PhasePre  Phase = "PRE"
	PhaseLive Phase = "LIVE"
	PhasePost Phase = "POST"
)

// Action names a phase-gated operation.
type Action string

const (
	ActionRegister           Action = "register"
	ActionTeamManage         Action = "team_manage"
	ActionTicketPurchase     Action = "ticket_purchase"
	ActionSubmissionEdit     Action = "submission_edit"
	ActionSubmissionFinalize Action = "submission_finalize"
	ActionScore              Action = "score"
)

var phasePolicy = map[Action][]Phase{
	ActionRegister:           {PhasePre, PhaseLive},
	ActionTeamManage:         {PhasePre, PhaseLive},
	ActionTicketPurchase:     {PhasePre, PhaseLive},
	ActionSubmissionEdit:     {PhaseLive},
	ActionSubmissionFinalize: {PhaseLive},
	ActionScore:              {PhaseLive, PhasePost},
}

func (p Phase) Valid() bool {
	switch p {
	case PhasePre, PhaseLive, PhasePost:
		return true
	}
	return false
}

// Permits is the single source of truth for phase gating. Unknown actions are denied.
func (p Phase) Permits(a Action) bool {
	for _, allowed := range phasePolicy[a] {
		if allowed == p {
			return true
		}
	}
	return false
}

// Next returns the phase that follows p, if any.
func (p Phase) Next() (Phase, bool) {
	switch p {
	case PhasePre:
		return PhaseLive, true
	case PhaseLive:
		return PhasePost, true
	}
	return "", false
}

// Event is the singleton hackathon configuration row.
type Event struct {
	Name                 string        `json:"name"`
	Phase                Phase         `json:"phase"`
	StartTime            *time.Time    `json:"start_time,omitempty"`
	EndTime              *time.Time    `json:"end_time,omitempty"`
	RegistrationDeadline *time.Time    `json:"registration_deadline,omitempty"`
	SubmissionDeadline   *time.Time    `json:"submission_deadline,omitempty"`
	DefaultPriceCents    int           `json:"default_price_cents"`
	Pricing              PricingConfig `json:"pricing"`
	UpdatedAt            time.Time     `json:"updated_at"`
}
