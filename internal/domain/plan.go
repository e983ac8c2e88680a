package domain

// ModuleAction is the verb of one planned step.
type ModuleAction string

const (
	ActionEnable   ModuleAction = "enable"
	ActionDisable  ModuleAction = "disable"
	ActionUpToDate ModuleAction = "uptodate"
)

// TenantModuleAction is the unit of a plan: apply Action to the module
// identified by ID. For an upgrade, From names the version being replaced.
type TenantModuleAction struct {
	ID     string       `json:"id"`
	Action ModuleAction `json:"action"`
	From   string       `json:"from,omitempty"`
}

// Plan is an ordered, dependency-closed sequence of actions. Dependencies
// appear before their dependents in the enable half; dependents appear
// before their dependencies in the disable half.
type Plan struct {
	actions []TenantModuleAction
}

// Append adds an action to the end of the plan.
func (p *Plan) Append(a TenantModuleAction) {
	p.actions = append(p.actions, a)
}

// Actions returns the planned actions in order.
func (p *Plan) Actions() []TenantModuleAction {
	return p.actions
}

// Len returns the number of planned actions.
func (p *Plan) Len() int { return len(p.actions) }

// Contains reports whether any planned action targets the given module id.
func (p *Plan) Contains(moduleID string) bool {
	for _, a := range p.actions {
		if a.ID == moduleID {
			return true
		}
	}
	return false
}

// InstallOptions control how an install/upgrade request is executed.
type InstallOptions struct {
	// Deploy runs the auto-deploy and auto-undeploy phases.
	Deploy bool
	// Simulate returns the computed plan without executing it.
	Simulate bool
	// PreRelease includes pre-release module versions in resolution.
	PreRelease bool
}
