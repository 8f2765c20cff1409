package models

import (
	"errors"
	"testing"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		status string
		action string
		actor  Actor
		want   string
		ok     bool
	}{
		// Happy path with documented actors
		{DealStatusDraft, DealActionSend, ActorAdvertiser, DealStatusNegotiation, true},
		{DealStatusDraft, DealActionSend, ActorOwner, DealStatusNegotiation, true},
		{DealStatusNegotiation, DealActionAccept, ActorOwner, DealStatusAwaitingEscrowPayment, true},
		{DealStatusNegotiation, DealActionAccept, ActorAdvertiser, DealStatusAwaitingEscrowPayment, true},
		{DealStatusOwnerAccepted, DealActionRequestEscrow, ActorAdvertiser, DealStatusAwaitingEscrowPayment, true},
		{DealStatusAwaitingEscrowPayment, DealActionConfirmEscrow, ActorSystem, DealStatusEscrowFunded, true},
		{DealStatusEscrowFunded, DealActionRequestCreative, ActorSystem, DealStatusCreativePendingOwner, true},
		{DealStatusCreativePendingOwner, DealActionSubmitCreative, ActorOwner, DealStatusCreativeSubmitted, true},
		{DealStatusCreativeSubmitted, DealActionApproveCreative, ActorAdvertiser, DealStatusCreativeApproved, true},
		{DealStatusCreativeApproved, DealActionSchedule, ActorOwner, DealStatusScheduled, true},
		{DealStatusScheduled, DealActionMarkPosted, ActorSystem, DealStatusPosted, true},
		{DealStatusPosted, DealActionStartRetention, ActorSystem, DealStatusRetentionCheck, true},
		{DealStatusRetentionCheck, DealActionRelease, ActorSystem, DealStatusReleased, true},
		{DealStatusRetentionCheck, DealActionRefund, ActorSystem, DealStatusRefunded, true},

		// Revision loop
		{DealStatusCreativeSubmitted, DealActionRequestChanges, ActorAdvertiser, DealStatusCreativeChangesRequested, true},
		{DealStatusCreativeChangesRequested, DealActionSubmitCreative, ActorOwner, DealStatusCreativeSubmitted, true},

		// Cancellation allowed for any actor pre-escrow
		{DealStatusDraft, DealActionCancel, ActorAdvertiser, DealStatusCancelled, true},
		{DealStatusNegotiation, DealActionCancel, ActorOwner, DealStatusCancelled, true},
		{DealStatusAwaitingEscrowPayment, DealActionCancel, ActorSystem, DealStatusCancelled, true},

		// Refund escape hatch is system-only
		{DealStatusEscrowFunded, DealActionRefund, ActorSystem, DealStatusRefunded, true},
		{DealStatusScheduled, DealActionRefund, ActorSystem, DealStatusRefunded, true},
		{DealStatusEscrowFunded, DealActionRefund, ActorOwner, "", false},

		// Actor not in the allowed set
		{DealStatusAwaitingEscrowPayment, DealActionConfirmEscrow, ActorAdvertiser, "", false},
		{DealStatusCreativePendingOwner, DealActionSubmitCreative, ActorAdvertiser, "", false},
		{DealStatusCreativeSubmitted, DealActionApproveCreative, ActorOwner, "", false},
		{DealStatusNegotiation, DealActionExpire, ActorAdvertiser, "", false},

		// Missing edges
		{DealStatusDraft, DealActionAccept, ActorOwner, "", false},
		{DealStatusEscrowFunded, DealActionCancel, ActorAdvertiser, "", false},
		{DealStatusPosted, DealActionRefund, ActorSystem, "", false},
		{DealStatusReleased, DealActionRefund, ActorSystem, "", false},
		{DealStatusCancelled, DealActionSend, ActorAdvertiser, "", false},
		{"nonexistent", DealActionSend, ActorAdvertiser, "", false},
		{DealStatusDraft, "nonexistent", ActorAdvertiser, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.status+"+"+tt.action+"/"+string(tt.actor), func(t *testing.T) {
			got, err := ValidateTransition(tt.status, tt.action, tt.actor)
			if tt.ok {
				if err != nil {
					t.Fatalf("ValidateTransition(%q, %q, %q) error: %v", tt.status, tt.action, tt.actor, err)
				}
				if got != tt.want {
					t.Errorf("ValidateTransition(%q, %q, %q) = %q, want %q", tt.status, tt.action, tt.actor, got, tt.want)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateTransition(%q, %q, %q) = %q, want error", tt.status, tt.action, tt.actor, got)
			}
			var ite *InvalidTransitionError
			if !errors.As(err, &ite) {
				t.Errorf("error type = %T, want *InvalidTransitionError", err)
			}
		})
	}
}

func TestTerminalStatusesHaveNoActions(t *testing.T) {
	terminal := []string{DealStatusReleased, DealStatusRefunded, DealStatusCancelled, DealStatusExpired}
	actors := []Actor{ActorAdvertiser, ActorOwner, ActorSystem, ActorAny}
	for _, status := range terminal {
		for _, actor := range actors {
			if got := AvailableActions(status, actor); len(got) != 0 {
				t.Errorf("AvailableActions(%q, %q) = %v, want empty", status, actor, got)
			}
		}
	}
}

func TestAvailableActionsByActor(t *testing.T) {
	has := func(actions []string, want string) bool {
		for _, a := range actions {
			if a == want {
				return true
			}
		}
		return false
	}

	owner := AvailableActions(DealStatusCreativeSubmitted, ActorOwner)
	if has(owner, DealActionApproveCreative) {
		t.Errorf("owner should not see approve_creative in %v", owner)
	}

	adv := AvailableActions(DealStatusCreativeSubmitted, ActorAdvertiser)
	if !has(adv, DealActionApproveCreative) || !has(adv, DealActionRequestChanges) {
		t.Errorf("advertiser actions = %v, want approve_creative and request_changes", adv)
	}

	// Cancel is open to everyone pre-escrow
	for _, actor := range []Actor{ActorAdvertiser, ActorOwner, ActorSystem} {
		if !has(AvailableActions(DealStatusNegotiation, actor), DealActionCancel) {
			t.Errorf("actor %q should be able to cancel from NEGOTIATION", actor)
		}
	}
}

func TestRevisionLoopIsReenterable(t *testing.T) {
	status := DealStatusCreativeSubmitted
	for i := 0; i < 3; i++ {
		next, err := ValidateTransition(status, DealActionRequestChanges, ActorAdvertiser)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		status = next
		next, err = ValidateTransition(status, DealActionSubmitCreative, ActorOwner)
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		status = next
	}
	if status != DealStatusCreativeSubmitted {
		t.Errorf("after revision loop status = %q, want %q", status, DealStatusCreativeSubmitted)
	}
}

func TestAllTransitionTargetsAreKnownStatuses(t *testing.T) {
	known := map[string]bool{
		DealStatusDraft: true, DealStatusNegotiation: true, DealStatusOwnerAccepted: true,
		DealStatusAwaitingEscrowPayment: true, DealStatusEscrowFunded: true,
		DealStatusCreativePendingOwner: true, DealStatusCreativeSubmitted: true,
		DealStatusCreativeChangesRequested: true, DealStatusCreativeApproved: true,
		DealStatusScheduled: true, DealStatusPosted: true, DealStatusRetentionCheck: true,
		DealStatusReleased: true, DealStatusRefunded: true, DealStatusCancelled: true,
		DealStatusExpired: true,
	}
	for key, tr := range DealTransitions {
		if !known[key.Status] {
			t.Errorf("transition key has unknown status %q", key.Status)
		}
		if !known[tr.To] {
			t.Errorf("transition %v targets unknown status %q", key, tr.To)
		}
		if IsTerminalStatus(key.Status) {
			t.Errorf("terminal status %q has an outgoing edge", key.Status)
		}
	}
}
