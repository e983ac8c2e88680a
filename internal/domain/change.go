package domain

// ChangeStep is one stage of a module transition on a tenant.
type ChangeStep string

const (
	StepStart       ChangeStep = "start"
	StepResolved    ChangeStep = "resolved"
	StepChecked     ChangeStep = "checked"
	StepInitialized ChangeStep = "initialized"
	StepBroadcast   ChangeStep = "broadcast"
	StepCommitted   ChangeStep = "committed"
)

// ChangeEvent advances a transition from one step to the next.
type ChangeEvent string

const (
	EventResolve        ChangeEvent = "resolve"
	EventCheckDeps      ChangeEvent = "check_deps"
	EventTenantInit     ChangeEvent = "tenant_init"
	EventBroadcastPerms ChangeEvent = "broadcast_perms"
	EventCommit         ChangeEvent = "commit"
)

// StepTransition defines a valid step change: an event moves a transition
// from Src to Dst.
type StepTransition struct {
	Event ChangeEvent
	Src   ChangeStep
	Dst   ChangeStep
}

// StepTransitions is the change engine's state machine. The steps are
// strictly linear; the extra commit sources cover the pure-disable path
// (no tenant init, no broadcast) and the no-permissions-module path (no
// broadcast). This is domain knowledge consumed by the FSM adapter.
var StepTransitions = []StepTransition{
	{Event: EventResolve, Src: StepStart, Dst: StepResolved},
	{Event: EventCheckDeps, Src: StepResolved, Dst: StepChecked},
	{Event: EventTenantInit, Src: StepChecked, Dst: StepInitialized},
	{Event: EventBroadcastPerms, Src: StepInitialized, Dst: StepBroadcast},
	{Event: EventCommit, Src: StepChecked, Dst: StepCommitted},
	{Event: EventCommit, Src: StepInitialized, Dst: StepCommitted},
	{Event: EventCommit, Src: StepBroadcast, Dst: StepCommitted},
}
