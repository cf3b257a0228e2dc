package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/kajiya-works/kajiya/models"
)

// ProjectedStatus is the simplified quote status the expiration tracker
// consumes; it collapses the full lifecycle into what matters for banners.
type ProjectedStatus string

const (
	ProjectedDraft   ProjectedStatus = "draft"
	ProjectedActive  ProjectedStatus = "active"
	ProjectedExpired ProjectedStatus = "expired"
	ProjectedWon     ProjectedStatus = "won"
	ProjectedLost    ProjectedStatus = "lost"
)

// ProjectStatus maps a full quote status onto the banner projection
func ProjectStatus(status models.QuoteStatus) ProjectedStatus {
	switch status {
	case models.QuoteStatusAccepted:
		return ProjectedWon
	case models.QuoteStatusAbandoned:
		return ProjectedLost
	case models.QuoteStatusExpired:
		return ProjectedExpired
	case models.QuoteStatusDraft, models.QuoteStatusAnalyzing:
		return ProjectedDraft
	default:
		return ProjectedActive
	}
}

// BannerState is the derived severity of the expiration banner
type BannerState string

const (
	BannerNone    BannerState = "none"
	BannerInfo    BannerState = "info"
	BannerWarning BannerState = "warning"
	BannerError   BannerState = "error"
)

// Banner is the recomputed (never stored) expiration display state for a
// quote. Dismissal of info/warning banners is per-session client state and
// does not appear here. CanExtend/CanReprice are capability flags supplied by
// the caller from its own authorization; the tracker performs none.
type Banner struct {
	State      BannerState `json:"state"`
	Message    string      `json:"message,omitempty"`
	DaysLeft   int         `json:"days_left"`
	HoursLeft  int         `json:"hours_left"`
	CanExtend  bool        `json:"can_extend"`
	CanReprice bool        `json:"can_reprice"`
}

// BannerFor derives the banner state from quote fields and wall-clock time.
// Rules: terminal and draft quotes (and quotes without expiry) show nothing;
// expired or out-of-time quotes show error; two days or less shows warning;
// seven days or less shows info.
func BannerFor(status ProjectedStatus, expiresAt *time.Time, now time.Time, canExtend, canReprice bool) Banner {
	banner := Banner{State: BannerNone, CanExtend: canExtend, CanReprice: canReprice}

	if expiresAt == nil || status == ProjectedWon || status == ProjectedLost || status == ProjectedDraft {
		return banner
	}

	remaining := expiresAt.Sub(now)
	daysLeft := int(math.Ceil(remaining.Hours() / 24))
	hoursLeft := int(math.Ceil(remaining.Hours()))
	banner.DaysLeft = daysLeft
	banner.HoursLeft = hoursLeft

	switch {
	case status == ProjectedExpired:
		banner.State = BannerError
		banner.Message = "This quote has expired and is now read-only."
	case daysLeft <= 0 || hoursLeft <= 0:
		banner.State = BannerError
		banner.Message = "This quote expires today!"
	case daysLeft <= 2:
		banner.State = BannerWarning
		banner.Message = fmt.Sprintf("This quote expires in %d %s.", daysLeft, pluralDay(daysLeft))
	case daysLeft <= 7:
		banner.State = BannerInfo
		banner.Message = fmt.Sprintf("This quote expires in %d days on %s.", daysLeft, expiresAt.Format("Jan 2, 2006"))
	}

	return banner
}

func pluralDay(n int) string {
	if n == 1 {
		return "day"
	}
	return "days"
}
