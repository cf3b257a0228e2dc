package pricing

import (
	"testing"
	"time"

	"github.com/kajiya-works/kajiya/models"
	"github.com/stretchr/testify/assert"
)

func TestProjectStatus(t *testing.T) {
	cases := map[models.QuoteStatus]ProjectedStatus{
		models.QuoteStatusDraft:       ProjectedDraft,
		models.QuoteStatusAnalyzing:   ProjectedDraft,
		models.QuoteStatusPriced:      ProjectedActive,
		models.QuoteStatusNeedsReview: ProjectedActive,
		models.QuoteStatusReviewed:    ProjectedActive,
		models.QuoteStatusSent:        ProjectedActive,
		models.QuoteStatusAccepted:    ProjectedWon,
		models.QuoteStatusExpired:     ProjectedExpired,
		models.QuoteStatusAbandoned:   ProjectedLost,
	}

	for status, expected := range cases {
		assert.Equal(t, expected, ProjectStatus(status), "status %s", status)
	}
}

func TestBannerFor(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("NoExpiryShowsNothing", func(t *testing.T) {
		banner := BannerFor(ProjectedActive, nil, now, true, true)
		assert.Equal(t, BannerNone, banner.State)
		assert.Empty(t, banner.Message)
	})

	t.Run("TerminalAndDraftShowNothing", func(t *testing.T) {
		expiresAt := now.Add(24 * time.Hour)
		for _, status := range []ProjectedStatus{ProjectedWon, ProjectedLost, ProjectedDraft} {
			banner := BannerFor(status, &expiresAt, now, false, false)
			assert.Equal(t, BannerNone, banner.State, "status %s", status)
		}
	})

	t.Run("ExpiredStatusShowsError", func(t *testing.T) {
		expiresAt := now.Add(-48 * time.Hour)
		banner := BannerFor(ProjectedExpired, &expiresAt, now, true, true)
		assert.Equal(t, BannerError, banner.State)
		assert.Equal(t, "This quote has expired and is now read-only.", banner.Message)
	})

	t.Run("PastExpiryWhileActiveShowsError", func(t *testing.T) {
		expiresAt := now.Add(-1 * time.Hour)
		banner := BannerFor(ProjectedActive, &expiresAt, now, false, true)
		assert.Equal(t, BannerError, banner.State)
		assert.Equal(t, "This quote expires today!", banner.Message)
	})

	t.Run("OneDayLeftShowsWarning", func(t *testing.T) {
		expiresAt := now.Add(20 * time.Hour)
		banner := BannerFor(ProjectedActive, &expiresAt, now, true, false)
		assert.Equal(t, BannerWarning, banner.State)
		assert.Equal(t, "This quote expires in 1 day.", banner.Message)
		assert.Equal(t, 1, banner.DaysLeft)
		assert.Equal(t, 20, banner.HoursLeft)
	})

	t.Run("TwoDaysLeftShowsWarning", func(t *testing.T) {
		expiresAt := now.Add(36 * time.Hour)
		banner := BannerFor(ProjectedActive, &expiresAt, now, true, true)
		assert.Equal(t, BannerWarning, banner.State)
		assert.Equal(t, "This quote expires in 2 days.", banner.Message)
		assert.Equal(t, 2, banner.DaysLeft)
	})

	t.Run("WithinSevenDaysShowsInfo", func(t *testing.T) {
		expiresAt := now.Add(5 * 24 * time.Hour)
		banner := BannerFor(ProjectedActive, &expiresAt, now, false, false)
		assert.Equal(t, BannerInfo, banner.State)
		assert.Equal(t, "This quote expires in 5 days on Mar 15, 2026.", banner.Message)
		assert.Equal(t, 5, banner.DaysLeft)
	})

	t.Run("BeyondSevenDaysShowsNothing", func(t *testing.T) {
		expiresAt := now.Add(10 * 24 * time.Hour)
		banner := BannerFor(ProjectedActive, &expiresAt, now, true, true)
		assert.Equal(t, BannerNone, banner.State)
		assert.Empty(t, banner.Message)
		assert.Equal(t, 10, banner.DaysLeft)
	})

	t.Run("CapabilityFlagsPassThrough", func(t *testing.T) {
		expiresAt := now.Add(24 * time.Hour)
		banner := BannerFor(ProjectedActive, &expiresAt, now, true, false)
		assert.True(t, banner.CanExtend)
		assert.False(t, banner.CanReprice)
	})
}
