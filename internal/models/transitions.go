package models

import "fmt"

// Actor is the authorization role a user plays in a deal transition.
type Actor string

const (
	ActorAdvertiser Actor = "advertiser"
	ActorOwner      Actor = "owner"
	ActorSystem     Actor = "system"
	ActorAny        Actor = "any"
)

// TransitionKey identifies one edge of the deal lifecycle.
type TransitionKey struct {
	Status string
	Action string
}

// Transition is the outcome of an edge plus the actors allowed to take it.
type Transition struct {
	To     string
	Actors []Actor
}

// DealTransitions maps (status, action) to the resulting status and allowed
// actors. The table is static; every lifecycle rule not expressible here
// (self-accept, wallet requirements, brief requirements) lives in the
// deal service.
var DealTransitions = map[TransitionKey]Transition{
	// Happy path
	{DealStatusDraft, DealActionSend}:                       {DealStatusNegotiation, []Actor{ActorAdvertiser, ActorOwner}},
	{DealStatusNegotiation, DealActionAccept}:               {DealStatusAwaitingEscrowPayment, []Actor{ActorAdvertiser, ActorOwner}},
	{DealStatusOwnerAccepted, DealActionRequestEscrow}:      {DealStatusAwaitingEscrowPayment, []Actor{ActorAdvertiser, ActorSystem}},
	{DealStatusAwaitingEscrowPayment, DealActionConfirmEscrow}: {DealStatusEscrowFunded, []Actor{ActorSystem}},
	{DealStatusEscrowFunded, DealActionRequestCreative}:     {DealStatusCreativePendingOwner, []Actor{ActorSystem}},
	{DealStatusCreativePendingOwner, DealActionSubmitCreative}: {DealStatusCreativeSubmitted, []Actor{ActorOwner}},
	{DealStatusCreativeSubmitted, DealActionApproveCreative}: {DealStatusCreativeApproved, []Actor{ActorAdvertiser}},
	{DealStatusCreativeSubmitted, DealActionRequestChanges}:  {DealStatusCreativeChangesRequested, []Actor{ActorAdvertiser}},
	{DealStatusCreativeChangesRequested, DealActionSubmitCreative}: {DealStatusCreativeSubmitted, []Actor{ActorOwner}},
	{DealStatusCreativeApproved, DealActionSchedule}:        {DealStatusScheduled, []Actor{ActorSystem, ActorOwner}},
	{DealStatusScheduled, DealActionMarkPosted}:             {DealStatusPosted, []Actor{ActorSystem}},
	{DealStatusPosted, DealActionStartRetention}:            {DealStatusRetentionCheck, []Actor{ActorSystem}},
	{DealStatusRetentionCheck, DealActionRelease}:           {DealStatusReleased, []Actor{ActorSystem}},
	{DealStatusRetentionCheck, DealActionRefund}:            {DealStatusRefunded, []Actor{ActorSystem}},

	// Cancellation from pre-escrow states
	{DealStatusDraft, DealActionCancel}:                 {DealStatusCancelled, []Actor{ActorAny}},
	{DealStatusNegotiation, DealActionCancel}:           {DealStatusCancelled, []Actor{ActorAny}},
	{DealStatusOwnerAccepted, DealActionCancel}:         {DealStatusCancelled, []Actor{ActorAny}},
	{DealStatusAwaitingEscrowPayment, DealActionCancel}: {DealStatusCancelled, []Actor{ActorAny}},

	// Expiration from waiting states
	{DealStatusNegotiation, DealActionExpire}:              {DealStatusExpired, []Actor{ActorSystem}},
	{DealStatusOwnerAccepted, DealActionExpire}:            {DealStatusExpired, []Actor{ActorSystem}},
	{DealStatusAwaitingEscrowPayment, DealActionExpire}:    {DealStatusExpired, []Actor{ActorSystem}},
	{DealStatusCreativePendingOwner, DealActionExpire}:     {DealStatusExpired, []Actor{ActorSystem}},
	{DealStatusCreativeChangesRequested, DealActionExpire}: {DealStatusExpired, []Actor{ActorSystem}},

	// Refund escape hatch from post-escrow states
	{DealStatusEscrowFunded, DealActionRefund}:             {DealStatusRefunded, []Actor{ActorSystem}},
	{DealStatusCreativePendingOwner, DealActionRefund}:     {DealStatusRefunded, []Actor{ActorSystem}},
	{DealStatusCreativeSubmitted, DealActionRefund}:        {DealStatusRefunded, []Actor{ActorSystem}},
	{DealStatusCreativeChangesRequested, DealActionRefund}: {DealStatusRefunded, []Actor{ActorSystem}},
	{DealStatusCreativeApproved, DealActionRefund}:         {DealStatusRefunded, []Actor{ActorSystem}},
	{DealStatusScheduled, DealActionRefund}:                {DealStatusRefunded, []Actor{ActorSystem}},
}

var terminalStatuses = map[string]bool{
	DealStatusReleased:  true,
	DealStatusRefunded:  true,
	DealStatusCancelled: true,
	DealStatusExpired:   true,
}

// MessagingStatuses lists the statuses in which the parties may still
// exchange negotiation messages on a deal.
var MessagingStatuses = map[string]bool{
	DealStatusNegotiation:              true,
	DealStatusOwnerAccepted:            true,
	DealStatusCreativePendingOwner:     true,
	DealStatusCreativeSubmitted:        true,
	DealStatusCreativeChangesRequested: true,
}

func IsTerminalStatus(status string) bool {
	return terminalStatuses[status]
}

// InvalidTransitionError reports a (status, action, actor) combination that
// the lifecycle table does not allow.
type InvalidTransitionError struct {
	Current string
	Action  string
	Actor   Actor
}

func (e *InvalidTransitionError) Error() string {
	if e.Actor != "" {
		return fmt.Sprintf("invalid transition: %s + %s by %s", e.Current, e.Action, e.Actor)
	}
	return fmt.Sprintf("invalid transition: %s + %s", e.Current, e.Action)
}

// ValidateTransition returns the status a deal moves to when the given actor
// performs the given action, or an InvalidTransitionError.
func ValidateTransition(current, action string, actor Actor) (string, error) {
	tr, ok := DealTransitions[TransitionKey{Status: current, Action: action}]
	if !ok {
		return "", &InvalidTransitionError{Current: current, Action: action, Actor: actor}
	}
	if !actorAllowed(tr.Actors, actor) {
		return "", &InvalidTransitionError{Current: current, Action: action, Actor: actor}
	}
	return tr.To, nil
}

// AvailableActions lists the actions the actor can take from the given
// status. Terminal statuses have no actions for anyone.
func AvailableActions(current string, actor Actor) []string {
	if terminalStatuses[current] {
		return nil
	}
	var actions []string
	for key, tr := range DealTransitions {
		if key.Status != current {
			continue
		}
		if actorAllowed(tr.Actors, actor) {
			actions = append(actions, key.Action)
		}
	}
	return actions
}

func actorAllowed(allowed []Actor, actor Actor) bool {
	for _, a := range allowed {
		if a == ActorAny || a == actor {
			return true
		}
	}
	return false
}
