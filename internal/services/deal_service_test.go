package services

import (
	"testing"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCreatorActor(t *testing.T) {
	campaignID := uuid.New()

	fromListing := &models.Deal{}
	require.Equal(t, models.ActorAdvertiser, creatorActor(fromListing))

	fromCampaign := &models.Deal{CampaignID: &campaignID}
	require.Equal(t, models.ActorOwner, creatorActor(fromCampaign))
}

func TestActionPermissions(t *testing.T) {
	// Actions delegates may perform, and the flag each one requires.
	require.Equal(t, "can_accept_deals", actionPermissions[models.DealActionAccept])
	require.Equal(t, "can_accept_deals", actionPermissions[models.DealActionCancel])
	require.Equal(t, "can_post", actionPermissions[models.DealActionSubmitCreative])
	require.Equal(t, "can_post", actionPermissions[models.DealActionSchedule])
	require.Equal(t, "can_post", actionPermissions[models.DealActionMarkPosted])

	// Payout actions are never delegated.
	_, ok := actionPermissions[models.DealActionRelease]
	require.False(t, ok)
	_, ok = actionPermissions[models.DealActionRefund]
	require.False(t, ok)
}

func TestAvailableActionsHidesSelfAccept(t *testing.T) {
	svc := &DealService{}
	user := &models.User{ID: uuid.New()}

	// Advertiser-created deal: the advertiser cannot accept their own
	// proposal, but the owner side can.
	deal := &models.Deal{Status: models.DealStatusNegotiation}
	require.NotContains(t, svc.availableActions(deal, user, models.ActorAdvertiser), models.DealActionAccept)
	require.Contains(t, svc.availableActions(deal, user, models.ActorOwner), models.DealActionAccept)

	// Owner-created deal: mirrored.
	campaignID := uuid.New()
	proposed := &models.Deal{Status: models.DealStatusNegotiation, CampaignID: &campaignID}
	require.Contains(t, svc.availableActions(proposed, user, models.ActorAdvertiser), models.DealActionAccept)
	require.NotContains(t, svc.availableActions(proposed, user, models.ActorOwner), models.DealActionAccept)

	// Outside negotiation nothing is filtered.
	funded := &models.Deal{Status: models.DealStatusEscrowFunded}
	require.Equal(t,
		models.AvailableActions(models.DealStatusEscrowFunded, models.ActorAdvertiser),
		svc.availableActions(funded, user, models.ActorAdvertiser))
}

func TestAuditedActions(t *testing.T) {
	require.True(t, auditedActions[models.DealActionCancel])
	require.True(t, auditedActions[models.DealActionRelease])
	require.True(t, auditedActions[models.DealActionRefund])
	require.False(t, auditedActions[models.DealActionAccept])
	require.False(t, auditedActions[models.DealActionSend])
}
