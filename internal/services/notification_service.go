package services

import (
	"context"
	"fmt"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/config"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/events"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/repositories"
	"go.uber.org/zap"
)

// Per-status notification texts. %s placeholders: deal ID, then price and
// currency where the text mentions them.
var statusTemplates = map[string]map[string]string{
	"en": {
		models.DealStatusNegotiation:              "Deal #%s: sent for negotiation. Price: %s %s.",
		models.DealStatusOwnerAccepted:            "Deal #%s: the channel owner accepted the deal.",
		models.DealStatusAwaitingEscrowPayment:    "Deal #%s: awaiting escrow payment of %s %s. Deposit within %dh or the deal will expire.",
		models.DealStatusEscrowFunded:             "Deal #%s: escrow of %s %s has been funded.",
		models.DealStatusCreativePendingOwner:     "Deal #%s: waiting for creative from channel owner.",
		models.DealStatusCreativeSubmitted:        "Deal #%s: creative has been submitted for review.",
		models.DealStatusCreativeChangesRequested: "Deal #%s: changes requested for the creative.",
		models.DealStatusCreativeApproved:         "Deal #%s: creative approved!",
		models.DealStatusScheduled:                "Deal #%s: post has been scheduled.",
		models.DealStatusPosted:                   "Deal #%s: post has been published.",
		models.DealStatusRetentionCheck:           "Deal #%s: retention check in progress.",
		models.DealStatusReleased:                 "Deal #%s: payment release requested. Processing on-chain transfer...",
		models.DealStatusRefunded:                 "Deal #%s: refund requested. Processing on-chain transfer...",
		models.DealStatusCancelled:                "Deal #%s: deal has been cancelled.",
		models.DealStatusExpired:                  "Deal #%s: deal has expired due to inactivity.",
	},
	"ru": {
		models.DealStatusNegotiation:              "Сделка #%s: отправлена на обсуждение. Цена: %s %s.",
		models.DealStatusOwnerAccepted:            "Сделка #%s: владелец канала принял сделку.",
		models.DealStatusAwaitingEscrowPayment:    "Сделка #%s: ожидание оплаты эскроу на сумму %s %s. Внесите депозит в течение %d ч. или сделка истечёт.",
		models.DealStatusEscrowFunded:             "Сделка #%s: эскроу на сумму %s %s пополнен.",
		models.DealStatusCreativePendingOwner:     "Сделка #%s: ожидание креатива от владельца канала.",
		models.DealStatusCreativeSubmitted:        "Сделка #%s: креатив отправлен на проверку.",
		models.DealStatusCreativeChangesRequested: "Сделка #%s: запрошены изменения в креативе.",
		models.DealStatusCreativeApproved:         "Сделка #%s: креатив одобрен!",
		models.DealStatusScheduled:                "Сделка #%s: пост запланирован.",
		models.DealStatusPosted:                   "Сделка #%s: пост опубликован.",
		models.DealStatusRetentionCheck:           "Сделка #%s: проверка удержания.",
		models.DealStatusReleased:                 "Сделка #%s: запрошен перевод оплаты. Обработка транзакции...",
		models.DealStatusRefunded:                 "Сделка #%s: запрошен возврат средств. Обработка транзакции...",
		models.DealStatusCancelled:                "Сделка #%s: сделка отменена.",
		models.DealStatusExpired:                  "Сделка #%s: сделка истекла из-за неактивности.",
	},
}

// Which delegated permissions make a team member interested in a status.
var statusTeamPermissions = map[string][]string{
	models.DealStatusNegotiation:              {"can_accept_deals"},
	models.DealStatusOwnerAccepted:            {"can_accept_deals"},
	models.DealStatusAwaitingEscrowPayment:    {"can_accept_deals", "can_payout"},
	models.DealStatusEscrowFunded:             {"can_accept_deals", "can_post"},
	models.DealStatusCreativePendingOwner:     {"can_post"},
	models.DealStatusCreativeSubmitted:        {"can_post"},
	models.DealStatusCreativeChangesRequested: {"can_post"},
	models.DealStatusCreativeApproved:         {"can_post"},
	models.DealStatusScheduled:                {"can_post"},
	models.DealStatusPosted:                   {"can_post"},
	models.DealStatusRetentionCheck:           {"can_post"},
	models.DealStatusReleased:                 {"can_accept_deals", "can_post", "can_payout"},
	models.DealStatusRefunded:                 {"can_accept_deals", "can_post", "can_payout"},
	models.DealStatusCancelled:                {"can_accept_deals", "can_post", "can_payout"},
	models.DealStatusExpired:                  {"can_accept_deals", "can_post", "can_payout"},
}

// NotificationService resolves recipients and localized texts for deal
// events and publishes them onto the notify stream. The bot bridge consumes
// the stream and delivers via Telegram. Failures are logged, never
// propagated.
type NotificationService struct {
	userRepo    *repositories.UserRepo
	channelRepo *repositories.ChannelRepo
	publisher   events.Publisher
	cfg         *config.Config
	log         *zap.Logger
}

func NewNotificationService(
	userRepo *repositories.UserRepo,
	channelRepo *repositories.ChannelRepo,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *NotificationService {
	return &NotificationService{
		userRepo:    userRepo,
		channelRepo: channelRepo,
		publisher:   publisher,
		cfg:         cfg,
		log:         log,
	}
}

func locale(u *models.User) string {
	if u != nil && u.LanguageCode == "ru" {
		return "ru"
	}
	return "en"
}

func langTemplate(m map[string]string, lang string) string {
	if t, ok := m[lang]; ok {
		return t
	}
	return m["en"]
}

func (s *NotificationService) send(ctx context.Context, telegramUserID int64, text string) {
	err := s.publisher.Publish(ctx, events.StreamNotify, events.Event{
		Type: events.EventBotNotification,
		Payload: map[string]any{
			"telegram_user_id": telegramUserID,
			"text":             text,
		},
	})
	if err != nil {
		s.log.Warn("failed to publish notification", zap.Int64("user", telegramUserID), zap.Error(err))
	}
}

func (s *NotificationService) sendToUser(ctx context.Context, u *models.User, render func(lang string) string) {
	if u == nil {
		return
	}
	text := render(locale(u))
	if text == "" {
		return
	}
	s.send(ctx, u.TelegramUserID, text)
}

// parties loads both deal parties, tolerating missing users.
func (s *NotificationService) parties(ctx context.Context, deal *models.Deal) (advertiser, owner *models.User) {
	advertiser, _ = s.userRepo.GetByID(ctx, deal.AdvertiserID)
	owner, _ = s.userRepo.GetByID(ctx, deal.OwnerID)
	return advertiser, owner
}

// teamRecipients returns channel team members holding any of the given
// permissions, excluding the channel owner who is notified as a party.
func (s *NotificationService) teamRecipients(ctx context.Context, deal *models.Deal, permissions ...string) []*models.User {
	members, err := s.channelRepo.ListTeamMembers(ctx, deal.ChannelID)
	if err != nil {
		s.log.Warn("failed to load team members", zap.String("deal", deal.ID.String()), zap.Error(err))
		return nil
	}
	var recipients []*models.User
	for _, m := range members {
		if m.UserID == deal.OwnerID {
			continue
		}
		matched := false
		for _, p := range permissions {
			if m.HasPermission(p) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		u, err := s.userRepo.GetByID(ctx, m.UserID)
		if err != nil {
			continue
		}
		recipients = append(recipients, u)
	}
	return recipients
}

// NotifyStatusChanged tells both parties and the interested team members
// about the deal's new status.
func (s *NotificationService) NotifyStatusChanged(ctx context.Context, deal *models.Deal) {
	render := func(lang string) string {
		templates, ok := statusTemplates[lang]
		if !ok {
			templates = statusTemplates["en"]
		}
		tmpl, ok := templates[deal.Status]
		if !ok {
			return ""
		}
		switch deal.Status {
		case models.DealStatusNegotiation, models.DealStatusEscrowFunded:
			return fmt.Sprintf(tmpl, deal.ID, deal.Price, deal.Currency)
		case models.DealStatusAwaitingEscrowPayment:
			return fmt.Sprintf(tmpl, deal.ID, deal.Price, deal.Currency, s.cfg.DealExpireHours)
		default:
			return fmt.Sprintf(tmpl, deal.ID)
		}
	}

	advertiser, owner := s.parties(ctx, deal)
	s.sendToUser(ctx, advertiser, render)
	s.sendToUser(ctx, owner, render)

	perms := statusTeamPermissions[deal.Status]
	if len(perms) == 0 {
		return
	}
	for _, u := range s.teamRecipients(ctx, deal, perms...) {
		s.sendToUser(ctx, u, render)
	}
}

var proposalTemplate = map[string]string{
	"en": "Deal #%s: new deal proposal from the channel owner!\n\nPrice: %s %s\n%sAccept or cancel the proposal.",
	"ru": "Сделка #%s: новое предложение сделки от владельца канала!\n\nЦена: %s %s\n%sПримите или отмените предложение.",
}

// NotifyProposal tells the advertiser about a deal proposed against their
// campaign by a channel owner.
func (s *NotificationService) NotifyProposal(ctx context.Context, deal *models.Deal) {
	advertiser, _ := s.userRepo.GetByID(ctx, deal.AdvertiserID)
	s.sendToUser(ctx, advertiser, func(lang string) string {
		briefLine := ""
		if deal.Brief != nil && *deal.Brief != "" {
			label := "Brief"
			if lang == "ru" {
				label = "Описание"
			}
			briefLine = fmt.Sprintf("%s: %s\n", label, truncate(*deal.Brief, 200))
		}
		return fmt.Sprintf(langTemplate(proposalTemplate, lang), deal.ID, deal.Price, deal.Currency, briefLine)
	})
}

var messageTemplate = map[string]string{
	"en": "Deal #%s: new message from %s:\n\n%s",
	"ru": "Сделка #%s: новое сообщение от %s:\n\n%s",
}

// NotifyDealMessage forwards a chat message to the counterpart party and to
// team members entitled to act in the current status, skipping the sender.
func (s *NotificationService) NotifyDealMessage(ctx context.Context, deal *models.Deal, sender *models.User, text string) {
	senderName := "—"
	if sender != nil {
		if sender.Username != nil && *sender.Username != "" {
			senderName = "@" + *sender.Username
		} else if sender.FirstName != nil {
			senderName = *sender.FirstName
		}
	}

	render := func(lang string) string {
		return fmt.Sprintf(langTemplate(messageTemplate, lang), deal.ID, senderName, truncate(text, 200))
	}

	advertiser, owner := s.parties(ctx, deal)
	recipient := owner
	if sender != nil && sender.ID == deal.OwnerID {
		recipient = advertiser
	}
	s.sendToUser(ctx, recipient, render)

	perms := statusTeamPermissions[deal.Status]
	for _, u := range s.teamRecipients(ctx, deal, perms...) {
		if sender != nil && u.ID == sender.ID {
			continue
		}
		s.sendToUser(ctx, u, render)
	}
}

var walletNeededTemplate = map[string]map[string]string{
	"en": {
		"advertiser": "Deal #%s: please connect your TON wallet to proceed.\n\nThe deal is ready for escrow, but your wallet address is needed.\nGo to Profile → Connect Wallet in the Mini App.",
		"owner":      "Deal #%s: please set your payout wallet to receive payment.\n\nThe deal is ready for escrow, but your wallet address is needed.\nGo to Profile → Connect Wallet in the Mini App.",
	},
	"ru": {
		"advertiser": "Сделка #%s: подключите TON-кошелёк для продолжения.\n\nСделка готова к эскроу, но необходим адрес вашего кошелька.\nПерейдите в Профиль → Подключить кошелёк в Mini App.",
		"owner":      "Сделка #%s: укажите кошелёк для получения оплаты.\n\nСделка готова к эскроу, но необходим адрес вашего кошелька.\nПерейдите в Профиль → Подключить кошелёк в Mini App.",
	},
}

// NotifyWalletNeeded tells a party their wallet is required before escrow
// can be created. For the owner side, payout delegates are notified too.
func (s *NotificationService) NotifyWalletNeeded(ctx context.Context, deal *models.Deal, role string) {
	render := func(lang string) string {
		templates, ok := walletNeededTemplate[lang]
		if !ok {
			templates = walletNeededTemplate["en"]
		}
		return fmt.Sprintf(templates[role], deal.ID)
	}

	advertiser, owner := s.parties(ctx, deal)
	target := advertiser
	if role == "owner" {
		target = owner
	}
	s.sendToUser(ctx, target, render)

	if role == "owner" {
		for _, u := range s.teamRecipients(ctx, deal, "can_payout") {
			s.sendToUser(ctx, u, render)
		}
	}
}

var walletConfirmTemplate = map[string]string{
	"en": "Deal #%s: please confirm your payout wallet.\n\nYour profile wallet will be used by default, but you need to confirm or set a different payout address for this deal.\nOpen the deal in the Mini App to confirm.",
	"ru": "Сделка #%s: подтвердите кошелёк для выплаты.\n\nКошелёк из профиля будет использован по умолчанию, но вам нужно подтвердить или указать другой адрес для выплаты по этой сделке.\nОткройте сделку в Mini App для подтверждения.",
}

// NotifyWalletConfirmNeeded asks the owner (and payout delegates) to
// confirm the payout address for this specific deal.
func (s *NotificationService) NotifyWalletConfirmNeeded(ctx context.Context, deal *models.Deal) {
	render := func(lang string) string {
		return fmt.Sprintf(langTemplate(walletConfirmTemplate, lang), deal.ID)
	}
	_, owner := s.parties(ctx, deal)
	s.sendToUser(ctx, owner, render)
	for _, u := range s.teamRecipients(ctx, deal, "can_payout") {
		s.sendToUser(ctx, u, render)
	}
}

var escrowPendingTemplate = map[string]string{
	"en": "Deal #%s: deal accepted! Waiting for the channel owner to confirm the payment method. You will be notified when it's ready for payment.",
	"ru": "Сделка #%s: сделка принята! Ожидаем подтверждение способа оплаты от владельца канала. Вы получите уведомление, когда всё будет готово к оплате.",
}

// NotifyEscrowPending tells the advertiser that escrow setup is blocked on
// the owner side.
func (s *NotificationService) NotifyEscrowPending(ctx context.Context, deal *models.Deal) {
	advertiser, _ := s.userRepo.GetByID(ctx, deal.AdvertiserID)
	s.sendToUser(ctx, advertiser, func(lang string) string {
		return fmt.Sprintf(langTemplate(escrowPendingTemplate, lang), deal.ID)
	})
}

var escrowCreatedAdvertiserTemplate = map[string]string{
	"en": "Deal #%s: escrow contract has been created automatically!\n\nAmount: %s %s\nPlease deposit within %d hours or the deal will expire.",
	"ru": "Сделка #%s: контракт эскроу создан автоматически!\n\nСумма: %s %s\nВнесите депозит в течение %d ч. или сделка истечёт.",
}

var escrowCreatedOwnerTemplate = map[string]string{
	"en": "Deal #%s: escrow contract has been created automatically!\n\nAmount: %s %s\nWaiting for the advertiser to deposit within %d hours.",
	"ru": "Сделка #%s: контракт эскроу создан автоматически!\n\nСумма: %s %s\nОжидаем депозит от рекламодателя в течение %d ч.",
}

// NotifyEscrowCreated tells both parties the escrow contract address is
// derived and deposit is awaited.
func (s *NotificationService) NotifyEscrowCreated(ctx context.Context, deal *models.Deal) {
	advertiser, owner := s.parties(ctx, deal)
	s.sendToUser(ctx, advertiser, func(lang string) string {
		return fmt.Sprintf(langTemplate(escrowCreatedAdvertiserTemplate, lang), deal.ID, deal.Price, deal.Currency, s.cfg.DealExpireHours)
	})
	s.sendToUser(ctx, owner, func(lang string) string {
		return fmt.Sprintf(langTemplate(escrowCreatedOwnerTemplate, lang), deal.ID, deal.Price, deal.Currency, s.cfg.DealExpireHours)
	})
}

var escrowConfirmedTemplate = map[string]map[string]string{
	"en": {
		models.EscrowStateRefunded: "Deal #%s: refund completed! %s TON returned to your wallet.",
		models.EscrowStateReleased: "Deal #%s: payment released! %s TON sent to channel owner. Deal complete!",
	},
	"ru": {
		models.EscrowStateRefunded: "Сделка #%s: возврат выполнен! %s TON возвращены на ваш кошелёк.",
		models.EscrowStateReleased: "Сделка #%s: оплата переведена! %s TON отправлены владельцу канала. Сделка завершена!",
	},
}

var escrowOwnerConfirmedTemplate = map[string]string{
	"en": "Deal #%s: payment received! %s TON sent to your wallet.",
	"ru": "Сделка #%s: оплата получена! %s TON отправлены на ваш кошелёк.",
}

// NotifyEscrowSettled announces an on-chain confirmed release or refund.
// Refunds go to the advertiser only; releases also congratulate the owner
// and payout delegates.
func (s *NotificationService) NotifyEscrowSettled(ctx context.Context, deal *models.Deal, state string, amountNano int64) {
	amount := formatTON(amountNano)
	advertiser, owner := s.parties(ctx, deal)

	s.sendToUser(ctx, advertiser, func(lang string) string {
		templates, ok := escrowConfirmedTemplate[lang]
		if !ok {
			templates = escrowConfirmedTemplate["en"]
		}
		tmpl, ok := templates[state]
		if !ok {
			return ""
		}
		return fmt.Sprintf(tmpl, deal.ID, amount)
	})

	if state != models.EscrowStateReleased {
		return
	}
	ownerRender := func(lang string) string {
		return fmt.Sprintf(langTemplate(escrowOwnerConfirmedTemplate, lang), deal.ID, amount)
	}
	s.sendToUser(ctx, owner, ownerRender)
	for _, u := range s.teamRecipients(ctx, deal, "can_payout") {
		s.sendToUser(ctx, u, ownerRender)
	}
}

var retentionViolationTemplate = map[string]string{
	"en": "Deal #%s: retention check failed — %s. Refund has been initiated, processing on-chain transfer...",
	"ru": "Сделка #%s: проверка удержания не пройдена — %s. Возврат средств инициирован, обработка транзакции...",
}

var retentionReasons = map[string]map[string]string{
	"en": {
		ReasonPostDeleted: "post was deleted",
		ReasonPostEdited:  "post was edited",
	},
	"ru": {
		ReasonPostDeleted: "пост был удалён",
		ReasonPostEdited:  "пост был отредактирован",
	},
}

// NotifyRetentionViolation tells both parties and posting delegates why the
// retention check failed and that a refund is underway.
func (s *NotificationService) NotifyRetentionViolation(ctx context.Context, deal *models.Deal, reason string) {
	render := func(lang string) string {
		reasons, ok := retentionReasons[lang]
		if !ok {
			reasons = retentionReasons["en"]
		}
		localized, ok := reasons[reason]
		if !ok {
			localized = reason
		}
		return fmt.Sprintf(langTemplate(retentionViolationTemplate, lang), deal.ID, localized)
	}

	advertiser, owner := s.parties(ctx, deal)
	s.sendToUser(ctx, advertiser, render)
	s.sendToUser(ctx, owner, render)
	for _, u := range s.teamRecipients(ctx, deal, "can_post") {
		s.sendToUser(ctx, u, render)
	}
}

var amendmentProposedTemplate = map[string]string{
	"en": "Deal #%s: the channel owner proposed changes:\n%s\nAccept or reject the proposal.",
	"ru": "Сделка #%s: владелец канала предложил изменения:\n%s\nПримите или отклоните предложение.",
}

var amendmentResolvedTemplate = map[string]map[string]string{
	"en": {
		models.AmendmentStatusAccepted: "Deal #%s: the advertiser accepted your proposed changes.",
		models.AmendmentStatusRejected: "Deal #%s: the advertiser rejected your proposed changes.",
	},
	"ru": {
		models.AmendmentStatusAccepted: "Сделка #%s: рекламодатель принял ваши предложенные изменения.",
		models.AmendmentStatusRejected: "Сделка #%s: рекламодатель отклонил ваши предложенные изменения.",
	},
}

func formatAmendmentChanges(a *models.DealAmendment, lang string) string {
	var lines []string
	if a.ProposedPrice != nil {
		label := "Price"
		if lang == "ru" {
			label = "Цена"
		}
		lines = append(lines, fmt.Sprintf("  %s: %s", label, *a.ProposedPrice))
	}
	if a.ProposedPublishDate != nil {
		label := "Publish date"
		if lang == "ru" {
			label = "Дата публикации"
		}
		lines = append(lines, fmt.Sprintf("  %s: %s", label, a.ProposedPublishDate.Format("2006-01-02")))
	}
	if len(lines) == 0 {
		return "—"
	}
	out := lines[0]
	for _, l := range lines[1:] {
		out += "\n" + l
	}
	return out
}

// NotifyAmendmentProposed asks the advertiser to review proposed term
// changes.
func (s *NotificationService) NotifyAmendmentProposed(ctx context.Context, deal *models.Deal, a *models.DealAmendment) {
	advertiser, _ := s.userRepo.GetByID(ctx, deal.AdvertiserID)
	s.sendToUser(ctx, advertiser, func(lang string) string {
		return fmt.Sprintf(langTemplate(amendmentProposedTemplate, lang), deal.ID, formatAmendmentChanges(a, lang))
	})
}

// NotifyAmendmentResolved tells the owner and deal-term delegates how the
// advertiser resolved the amendment.
func (s *NotificationService) NotifyAmendmentResolved(ctx context.Context, deal *models.Deal, a *models.DealAmendment) {
	render := func(lang string) string {
		templates, ok := amendmentResolvedTemplate[lang]
		if !ok {
			templates = amendmentResolvedTemplate["en"]
		}
		tmpl, ok := templates[a.Status]
		if !ok {
			return ""
		}
		return fmt.Sprintf(tmpl, deal.ID)
	}
	_, owner := s.parties(ctx, deal)
	s.sendToUser(ctx, owner, render)
	for _, u := range s.teamRecipients(ctx, deal, "can_accept_deals") {
		s.sendToUser(ctx, u, render)
	}
}

var creativeChangesTemplate = map[string]string{
	"en": "Deal #%s: advertiser requested changes to the creative:\n\n%s",
	"ru": "Сделка #%s: рекламодатель запросил изменения в креативе:\n\n%s",
}

// NotifyCreativeChanges forwards the advertiser's feedback to the owner and
// posting delegates.
func (s *NotificationService) NotifyCreativeChanges(ctx context.Context, deal *models.Deal, feedback string) {
	render := func(lang string) string {
		return fmt.Sprintf(langTemplate(creativeChangesTemplate, lang), deal.ID, truncate(feedback, 1500))
	}
	_, owner := s.parties(ctx, deal)
	s.sendToUser(ctx, owner, render)
	for _, u := range s.teamRecipients(ctx, deal, "can_post") {
		s.sendToUser(ctx, u, render)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func formatTON(nano int64) string {
	return fmt.Sprintf("%.2f", float64(nano)/1e9)
}
