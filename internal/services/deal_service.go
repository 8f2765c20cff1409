package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/config"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/events"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/tasks"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Delegated permission required per action. Actions absent from this map
// can only be performed by the deal parties themselves.
var actionPermissions = map[string]string{
	models.DealActionAccept:         "can_accept_deals",
	models.DealActionCancel:         "can_accept_deals",
	models.DealActionSubmitCreative: "can_post",
	models.DealActionSchedule:       "can_post",
	models.DealActionMarkPosted:     "can_post",
}

// DealService orchestrates the deal lifecycle: authorization, status
// transitions, escrow bootstrap and the side effects each step carries.
type DealService struct {
	dealRepo    *repositories.DealRepo
	channelRepo *repositories.ChannelRepo
	escrowRepo  *repositories.EscrowRepo
	messageRepo *repositories.MessageRepo
	auditRepo   *repositories.AuditRepo
	userRepo    *repositories.UserRepo
	escrow      *EscrowService
	notifier    *NotificationService
	dispatcher  *tasks.Dispatcher
	botClient   *BotClient
	publisher   events.Publisher
	cfg         *config.Config
	log         *zap.Logger
}

func NewDealService(
	dealRepo *repositories.DealRepo,
	channelRepo *repositories.ChannelRepo,
	escrowRepo *repositories.EscrowRepo,
	messageRepo *repositories.MessageRepo,
	auditRepo *repositories.AuditRepo,
	userRepo *repositories.UserRepo,
	escrow *EscrowService,
	notifier *NotificationService,
	dispatcher *tasks.Dispatcher,
	botClient *BotClient,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *DealService {
	return &DealService{
		dealRepo:    dealRepo,
		channelRepo: channelRepo,
		escrowRepo:  escrowRepo,
		messageRepo: messageRepo,
		auditRepo:   auditRepo,
		userRepo:    userRepo,
		escrow:      escrow,
		notifier:    notifier,
		dispatcher:  dispatcher,
		botClient:   botClient,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

// creatorActor is the side that opened the deal. That side may not accept
// its own proposal.
func creatorActor(deal *models.Deal) models.Actor {
	if deal.ProposedByAdvertiser() {
		return models.ActorAdvertiser
	}
	return models.ActorOwner
}

// actorForUser resolves which role the user plays on this deal. Non-party
// users must be team members of the deal's channel; they act as the owner
// side. For state-changing actions the delegate must hold the matching
// permission and still be a live admin of the Telegram channel.
func (s *DealService) actorForUser(ctx context.Context, deal *models.Deal, user *models.User, action string) (models.Actor, error) {
	switch user.ID {
	case deal.AdvertiserID:
		return models.ActorAdvertiser, nil
	case deal.OwnerID:
		return models.ActorOwner, nil
	}

	member, err := s.channelRepo.GetTeamMember(ctx, deal.ChannelID, user.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return "", ErrForbidden
		}
		return "", err
	}
	if member.Role != models.TeamRoleManager {
		return "", ErrForbidden
	}

	if action != "" {
		perm, ok := actionPermissions[action]
		if !ok || !member.HasPermission(perm) {
			return "", ErrForbidden
		}
		channel, err := s.channelRepo.GetByID(ctx, deal.ChannelID)
		if err != nil {
			return "", err
		}
		if !s.botClient.CheckAdmin(ctx, channel.TelegramChannelID, user.TelegramUserID) {
			return "", ErrForbidden
		}
	}
	return models.ActorOwner, nil
}

// Transition performs a user-initiated deal action.
func (s *DealService) Transition(ctx context.Context, dealID uuid.UUID, action string, user *models.User) (*models.Deal, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}

	actor, err := s.actorForUser(ctx, deal, user, action)
	if err != nil {
		return nil, err
	}

	// A party may not accept its own proposal.
	if action == models.DealActionAccept && deal.Status == models.DealStatusNegotiation && actor == creatorActor(deal) {
		return nil, ErrForbidden
	}
	// A draft without a brief is not worth the owner's time.
	if action == models.DealActionSend && (deal.Brief == nil || *deal.Brief == "") {
		return nil, fmt.Errorf("deal brief is required before sending")
	}
	// Payout actions from the owner side need a wallet to pay out to.
	if actor == models.ActorOwner &&
		(action == models.DealActionRelease || action == models.DealActionRefund) &&
		user.WalletAddress == nil {
		return nil, ErrWalletMissing
	}

	if err := s.apply(ctx, deal, action, actor, &user.ID, false); err != nil {
		return nil, err
	}
	return deal, nil
}

// SystemTransition performs an action on behalf of the platform itself.
func (s *DealService) SystemTransition(ctx context.Context, dealID uuid.UUID, action string, silent bool) error {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	return s.apply(ctx, deal, action, models.ActorSystem, nil, silent)
}

// auditedActions are recorded in the audit log on top of the system chat
// message every transition gets.
var auditedActions = map[string]bool{
	models.DealActionCancel:  true,
	models.DealActionRelease: true,
	models.DealActionRefund:  true,
}

func (s *DealService) apply(ctx context.Context, deal *models.Deal, action string, actor models.Actor, actorUserID *uuid.UUID, silent bool) error {
	oldStatus := deal.Status
	newStatus, err := models.ValidateTransition(oldStatus, action, actor)
	if err != nil {
		return err
	}

	ok, err := s.dealRepo.UpdateStatusCAS(ctx, deal.ID, oldStatus, newStatus)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	deal.Status = newStatus
	deal.LastActivityAt = time.Now()

	s.systemMessage(ctx, deal.ID, fmt.Sprintf("Status changed to %s by %s", newStatus, actor))

	if auditedActions[action] {
		actorType := "system"
		if actorUserID != nil {
			actorType = "user"
		}
		dealID := deal.ID
		_ = s.auditRepo.Log(ctx, models.AuditLog{
			ActorUserID: actorUserID,
			ActorType:   actorType,
			Action:      "deal_" + action,
			EntityType:  "deal",
			EntityID:    &dealID,
			Meta:        map[string]any{"old_status": oldStatus, "new_status": newStatus},
		})
	}

	_ = s.publisher.Publish(ctx, "events:deal", events.Event{
		Type: events.EventDealStatusChanged,
		Payload: map[string]any{
			"deal_id":    deal.ID.String(),
			"old_status": oldStatus,
			"new_status": newStatus,
			"action":     action,
		},
	})

	// Drafts are private to the advertiser until sent, and the escrow
	// bootstrap below produces its own richer notifications.
	if !silent &&
		!(oldStatus == models.DealStatusDraft && action != models.DealActionSend) &&
		newStatus != models.DealStatusAwaitingEscrowPayment {
		s.notifier.NotifyStatusChanged(ctx, deal)
	}

	switch newStatus {
	case models.DealStatusAwaitingEscrowPayment:
		s.TryAutoCreateEscrow(ctx, deal)
	case models.DealStatusEscrowFunded:
		// Move straight on to the creative stage.
		if err := s.SystemTransition(ctx, deal.ID, models.DealActionRequestCreative, silent); err != nil {
			s.log.Warn("request_creative cascade failed", zap.String("deal", deal.ID.String()), zap.Error(err))
		}
	case models.DealStatusReleased:
		if err := s.dispatcher.EnqueueRelease(ctx, deal.ID); err != nil {
			s.log.Error("failed to enqueue release", zap.String("deal", deal.ID.String()), zap.Error(err))
		}
	case models.DealStatusRefunded:
		if err := s.dispatcher.EnqueueRefund(ctx, deal.ID); err != nil {
			s.log.Error("failed to enqueue refund", zap.String("deal", deal.ID.String()), zap.Error(err))
		}
	}
	return nil
}

func (s *DealService) systemMessage(ctx context.Context, dealID uuid.UUID, text string) {
	err := s.messageRepo.Create(ctx, &models.DealMessage{
		ID:          uuid.New(),
		DealID:      dealID,
		Text:        text,
		MessageType: models.DealMessageTypeSystem,
	})
	if err != nil {
		s.log.Warn("failed to write system message", zap.String("deal", dealID.String()), zap.Error(err))
	}
}

// TryAutoCreateEscrow derives the escrow contract as soon as both wallet
// addresses are known. Until then it nudges the parties, at most once per
// deal. Returns true once the escrow exists.
func (s *DealService) TryAutoCreateEscrow(ctx context.Context, deal *models.Deal) bool {
	if deal.Status != models.DealStatusAwaitingEscrowPayment {
		return false
	}
	if _, err := s.escrowRepo.GetByDealID(ctx, deal.ID); err == nil {
		return true
	} else if !errors.Is(err, repositories.ErrNotFound) {
		s.log.Error("escrow lookup failed", zap.String("deal", deal.ID.String()), zap.Error(err))
		return false
	}

	advertiser, err := s.userRepo.GetByID(ctx, deal.AdvertiserID)
	if err != nil {
		s.log.Error("advertiser lookup failed", zap.String("deal", deal.ID.String()), zap.Error(err))
		return false
	}
	owner, err := s.userRepo.GetByID(ctx, deal.OwnerID)
	if err != nil {
		s.log.Error("owner lookup failed", zap.String("deal", deal.ID.String()), zap.Error(err))
		return false
	}

	// Per-deal payout override beats the profile wallet.
	var ownerWallet string
	if deal.OwnerWalletAddress != nil && *deal.OwnerWalletAddress != "" {
		ownerWallet = *deal.OwnerWalletAddress
	} else if owner.WalletAddress != nil {
		ownerWallet = *owner.WalletAddress
	}

	var advertiserWallet string
	if deal.AdvertiserWalletAddress != nil && *deal.AdvertiserWalletAddress != "" {
		advertiserWallet = *deal.AdvertiserWalletAddress
	} else if advertiser.WalletAddress != nil {
		advertiserWallet = *advertiser.WalletAddress
	}

	if ownerWallet != "" && !deal.OwnerWalletConfirmed {
		s.notifyWalletsOnce(ctx, deal, func() {
			s.notifier.NotifyWalletConfirmNeeded(ctx, deal)
			s.notifier.NotifyEscrowPending(ctx, deal)
		})
		return false
	}
	if advertiserWallet == "" || ownerWallet == "" {
		s.notifyWalletsOnce(ctx, deal, func() {
			if advertiserWallet == "" {
				s.notifier.NotifyWalletNeeded(ctx, deal, "advertiser")
			}
			if ownerWallet == "" {
				s.notifier.NotifyWalletNeeded(ctx, deal, "owner")
			}
		})
		return false
	}

	if _, err := s.escrow.CreateForDeal(ctx, deal, advertiserWallet, ownerWallet); err != nil {
		s.log.Error("escrow auto-create failed", zap.String("deal", deal.ID.String()), zap.Error(err))
		return false
	}
	_ = s.dealRepo.Touch(ctx, deal.ID)
	s.systemMessage(ctx, deal.ID, fmt.Sprintf(
		"Escrow contract created. Deposit within %dh or the deal will expire.", s.cfg.DealExpireHours))
	s.notifier.NotifyEscrowCreated(ctx, deal)
	return true
}

func (s *DealService) notifyWalletsOnce(ctx context.Context, deal *models.Deal, notify func()) {
	if deal.WalletNotificationSent {
		return
	}
	notify()
	if err := s.dealRepo.SetWalletNotificationSent(ctx, deal.ID, true); err != nil {
		s.log.Warn("failed to latch wallet notification", zap.String("deal", deal.ID.String()), zap.Error(err))
		return
	}
	deal.WalletNotificationSent = true
}

// CreateDealFromListing opens a draft deal by an advertiser against a
// channel listing. The draft stays private until the advertiser sends it.
func (s *DealService) CreateDealFromListing(ctx context.Context, advertiser *models.User, listingID uuid.UUID, brief *string, price string) (*models.Deal, error) {
	listing, err := s.channelRepo.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsActive {
		return nil, fmt.Errorf("listing %s is not active", listingID)
	}
	channel, err := s.channelRepo.GetByID(ctx, listing.ChannelID)
	if err != nil {
		return nil, err
	}
	if channel.OwnerID == advertiser.ID {
		return nil, fmt.Errorf("cannot open a deal against your own channel")
	}

	if price == "" {
		price = listing.Price
	}
	if _, err := priceToNano(price); err != nil {
		return nil, err
	}

	lid := listingID
	deal := &models.Deal{
		ID:             uuid.New(),
		ListingID:      &lid,
		ChannelID:      listing.ChannelID,
		AdvertiserID:   advertiser.ID,
		OwnerID:        channel.OwnerID,
		Status:         models.DealStatusDraft,
		Price:          price,
		Currency:       listing.Currency,
		Brief:          brief,
		RetentionHours: s.cfg.RetentionHours,
	}
	if err := s.dealRepo.Create(ctx, deal); err != nil {
		return nil, err
	}
	return deal, nil
}

// CreateDealFromCampaign opens a deal proposed by a channel owner against
// an advertiser's campaign. It starts in negotiation immediately and the
// advertiser is notified.
func (s *DealService) CreateDealFromCampaign(ctx context.Context, owner *models.User, campaignID, channelID uuid.UUID, price string, description *string) (*models.Deal, error) {
	campaign, err := s.channelRepo.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.IsActive {
		return nil, fmt.Errorf("campaign %s is not active", campaignID)
	}
	channel, err := s.channelRepo.GetByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if channel.OwnerID != owner.ID {
		return nil, ErrForbidden
	}
	if campaign.AdvertiserID == owner.ID {
		return nil, fmt.Errorf("cannot propose a deal on your own campaign")
	}

	priceNano, err := priceToNano(price)
	if err != nil {
		return nil, err
	}
	minNano, err := priceToNano(campaign.BudgetMin)
	if err != nil {
		return nil, fmt.Errorf("campaign budget_min: %w", err)
	}
	maxNano, err := priceToNano(campaign.BudgetMax)
	if err != nil {
		return nil, fmt.Errorf("campaign budget_max: %w", err)
	}
	if priceNano < minNano || (maxNano > 0 && priceNano > maxNano) {
		return nil, fmt.Errorf("price %s is outside campaign budget %s-%s", price, campaign.BudgetMin, campaign.BudgetMax)
	}

	cid := campaignID
	deal := &models.Deal{
		ID:             uuid.New(),
		CampaignID:     &cid,
		ChannelID:      channelID,
		AdvertiserID:   campaign.AdvertiserID,
		OwnerID:        owner.ID,
		Status:         models.DealStatusNegotiation,
		Price:          price,
		Currency:       "TON",
		Description:    description,
		Brief:          campaign.Brief,
		PublishFrom:    campaign.PublishFrom,
		PublishTo:      campaign.PublishTo,
		RetentionHours: s.cfg.RetentionHours,
	}
	if err := s.dealRepo.Create(ctx, deal); err != nil {
		return nil, err
	}
	s.systemMessage(ctx, deal.ID, "Deal proposed by channel owner")
	s.notifier.NotifyProposal(ctx, deal)
	return deal, nil
}

// AddDealMessage appends a chat message. Messaging is only open while the
// parties still have something to negotiate or review.
func (s *DealService) AddDealMessage(ctx context.Context, dealID uuid.UUID, user *models.User, text string) (*models.DealMessage, error) {
	if text == "" {
		return nil, fmt.Errorf("message text is required")
	}
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !models.MessagingStatuses[deal.Status] {
		return nil, fmt.Errorf("messaging is closed in status %s", deal.Status)
	}
	if _, err := s.actorForUser(ctx, deal, user, ""); err != nil {
		return nil, err
	}

	senderID := user.ID
	msg := &models.DealMessage{
		ID:           uuid.New(),
		DealID:       dealID,
		SenderUserID: &senderID,
		Text:         text,
		MessageType:  models.DealMessageTypeUser,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}
	_ = s.dealRepo.Touch(ctx, dealID)
	s.notifier.NotifyDealMessage(ctx, deal, user, text)
	return msg, nil
}

// DealDetail is the deal plus what the requesting user may do with it.
type DealDetail struct {
	Deal             *models.Deal         `json:"deal"`
	Escrow           *models.Escrow       `json:"escrow,omitempty"`
	Messages         []models.DealMessage `json:"messages"`
	AvailableActions []string             `json:"available_actions"`
}

// GetDealDetail loads the deal with its escrow, recent messages and the
// actions available to this user. Team viewers may look but the action
// list never includes anything state-changing for them.
func (s *DealService) GetDealDetail(ctx context.Context, dealID uuid.UUID, user *models.User) (*DealDetail, error) {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return nil, err
	}
	actor, err := s.actorForUser(ctx, deal, user, "")
	if err != nil {
		return nil, err
	}

	detail := &DealDetail{Deal: deal}
	if escrow, err := s.escrowRepo.GetByDealID(ctx, dealID); err == nil {
		detail.Escrow = escrow
	}
	detail.Messages, _ = s.messageRepo.ListByDeal(ctx, dealID, 100)
	detail.AvailableActions = s.availableActions(deal, user, actor)
	return detail, nil
}

func (s *DealService) availableActions(deal *models.Deal, user *models.User, actor models.Actor) []string {
	actions := models.AvailableActions(deal.Status, actor)
	if deal.Status != models.DealStatusNegotiation || actor != creatorActor(deal) {
		return actions
	}
	filtered := actions[:0]
	for _, a := range actions {
		if a != models.DealActionAccept {
			filtered = append(filtered, a)
		}
	}
	return filtered
}

// ConfirmOwnerWallet records the owner's verified payout address for the
// deal and retries escrow creation. The address must already have passed
// TON Connect proof verification.
func (s *DealService) ConfirmOwnerWallet(ctx context.Context, dealID uuid.UUID, user *models.User, address string) error {
	deal, err := s.dealRepo.GetByID(ctx, dealID)
	if err != nil {
		return err
	}
	if user.ID != deal.OwnerID {
		member, err := s.channelRepo.GetTeamMember(ctx, deal.ChannelID, user.ID)
		if err != nil || !member.HasPermission("can_payout") {
			return ErrForbidden
		}
	}

	if err := s.dealRepo.SetOwnerWallet(ctx, dealID, address); err != nil {
		return err
	}
	if err := s.dealRepo.SetOwnerWalletConfirmed(ctx, dealID, true); err != nil {
		return err
	}
	deal.OwnerWalletAddress = &address
	deal.OwnerWalletConfirmed = true

	s.TryAutoCreateEscrow(ctx, deal)
	return nil
}

// RetryEscrowForUser re-runs escrow bootstrap for every deal of the user
// stuck waiting on wallets, typically right after they connected one.
func (s *DealService) RetryEscrowForUser(ctx context.Context, userID uuid.UUID) {
	deals, err := s.dealRepo.ListAwaitingEscrowForUser(ctx, userID)
	if err != nil {
		s.log.Error("failed to list awaiting-escrow deals", zap.String("user", userID.String()), zap.Error(err))
		return
	}
	for i := range deals {
		s.TryAutoCreateEscrow(ctx, &deals[i])
	}
}
