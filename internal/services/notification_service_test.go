package services

import (
	"testing"
	"time"

	"github.com/filatovuu/Telegram-Ads-Marketplace-Bot/internal/models"
	"github.com/stretchr/testify/require"
)

func TestStatusTemplatesCoverAllStatuses(t *testing.T) {
	statuses := []string{
		models.DealStatusNegotiation, models.DealStatusOwnerAccepted,
		models.DealStatusAwaitingEscrowPayment, models.DealStatusEscrowFunded,
		models.DealStatusCreativePendingOwner, models.DealStatusCreativeSubmitted,
		models.DealStatusCreativeChangesRequested, models.DealStatusCreativeApproved,
		models.DealStatusScheduled, models.DealStatusPosted,
		models.DealStatusRetentionCheck, models.DealStatusReleased,
		models.DealStatusRefunded, models.DealStatusCancelled,
		models.DealStatusExpired,
	}
	for _, lang := range []string{"en", "ru"} {
		for _, status := range statuses {
			require.NotEmpty(t, statusTemplates[lang][status], "%s/%s", lang, status)
		}
	}
	// Drafts never notify.
	_, ok := statusTemplates["en"][models.DealStatusDraft]
	require.False(t, ok)
}

func TestStatusTeamPermissions(t *testing.T) {
	require.Equal(t, []string{"can_accept_deals"}, statusTeamPermissions[models.DealStatusNegotiation])
	require.Equal(t, []string{"can_accept_deals", "can_payout"}, statusTeamPermissions[models.DealStatusAwaitingEscrowPayment])
	require.Equal(t, []string{"can_accept_deals", "can_post"}, statusTeamPermissions[models.DealStatusEscrowFunded])
	require.Equal(t, []string{"can_post"}, statusTeamPermissions[models.DealStatusRetentionCheck])

	for _, terminal := range []string{
		models.DealStatusReleased, models.DealStatusRefunded,
		models.DealStatusCancelled, models.DealStatusExpired,
	} {
		require.Equal(t, []string{"can_accept_deals", "can_post", "can_payout"}, statusTeamPermissions[terminal])
	}
}

func TestLocale(t *testing.T) {
	require.Equal(t, "en", locale(nil))
	require.Equal(t, "en", locale(&models.User{LanguageCode: "de"}))
	require.Equal(t, "ru", locale(&models.User{LanguageCode: "ru"}))
}

func TestFormatTON(t *testing.T) {
	require.Equal(t, "1.50", formatTON(1_500_000_000))
	require.Equal(t, "0.00", formatTON(0))
	require.Equal(t, "12.35", formatTON(12_345_678_901))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 10))
	require.Equal(t, "ab", truncate("abcd", 2))
	// Rune-safe on multi-byte text.
	require.Equal(t, "ыы", truncate("ыыыы", 2))
}

func TestFormatAmendmentChanges(t *testing.T) {
	price := "150.5"
	date := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	a := &models.DealAmendment{ProposedPrice: &price, ProposedPublishDate: &date}
	require.Equal(t, "  Price: 150.5\n  Publish date: 2025-03-14", formatAmendmentChanges(a, "en"))
	require.Equal(t, "  Цена: 150.5\n  Дата публикации: 2025-03-14", formatAmendmentChanges(a, "ru"))

	empty := &models.DealAmendment{}
	require.Equal(t, "—", formatAmendmentChanges(empty, "en"))
}
