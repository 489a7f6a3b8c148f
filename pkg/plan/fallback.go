package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lifeplan-ai/lifeplan/pkg/models"
	"github.com/lifeplan-ai/lifeplan/pkg/scheduler"
)

// fallbackServices is the canonical service list booked when no structured
// plan was captured from the conversation.
var fallbackServices = []string{
	models.ServiceBaselineBloodwork,
	models.ServiceVO2Test,
	models.ServiceLifestyleCoaching,
}

// EvidenceFlagForService maps validation verdicts onto an item evidence flag:
// a true verdict on a claim mentioning the service with confidence >= 0.6 is
// "ok", any mention with lower confidence is "low", no mention is "unknown".
func EvidenceFlagForService(serviceType string, validations []models.ClaimValidation) string {
	if len(validations) == 0 {
		return EvidenceUnknown
	}
	label := strings.ReplaceAll(serviceType, "_", " ")
	best := 0.0
	hits := 0
	for _, v := range validations {
		if !strings.Contains(strings.ToLower(v.Claim.Text), label) {
			continue
		}
		hits++
		if v.Validity == models.VerdictTrue && v.Confidence > best {
			best = v.Confidence
		}
	}
	if hits == 0 {
		return EvidenceUnknown
	}
	if best >= 0.6 {
		return EvidenceOK
	}
	return EvidenceLow
}

// Fallback synthesizes a deterministic plan when structured capture failed:
// each canonical service is booked against a fresh seed-42 slot pool and
// becomes one appointment-backed item. Bookings are persisted to
// bookingsPath when non-empty.
func Fallback(user models.UserProfile, validations []models.ClaimValidation, bookingsPath string) *FinalPlan {
	pool := scheduler.NewPool(scheduler.DefaultSeed)
	userID := user.UserID()

	var items []Item
	for i, svc := range fallbackServices {
		if len(pool.FindAvailable(svc, user.BlackoutDates)) == 0 {
			continue
		}
		appt := pool.Book(svc, userID, bookingsPath)
		if appt == nil {
			continue
		}
		month := i + 1
		if month > 6 {
			month = 6
		}
		items = append(items, Item{
			Month:        month,
			Category:     svc,
			Rationale:    fmt.Sprintf("Supports user goals via %s.", svc),
			Appointment:  appt,
			EvidenceFlag: EvidenceFlagForService(svc, validations),
		})
	}

	p := &FinalPlan{
		UserName:    displayName(user),
		Items:       items,
		Warnings:    evidenceWarnings(items),
		Disclaimers: append([]string(nil), FixedDisclaimers...),
	}
	p.Normalize()
	return p
}

// evidenceWarnings returns a single warning naming every service whose
// evidence flag is low or unknown, or nil when all items check out.
func evidenceWarnings(items []Item) []string {
	uncertain := map[string]struct{}{}
	for _, item := range items {
		if item.EvidenceFlag == EvidenceLow || item.EvidenceFlag == EvidenceUnknown {
			uncertain[item.Category] = struct{}{}
		}
	}
	if len(uncertain) == 0 {
		return nil
	}
	names := make([]string, 0, len(uncertain))
	for name := range uncertain {
		names = append(names, name)
	}
	sort.Strings(names)
	return []string{
		"Evidence-uncertain items present: " + strings.Join(names, ", ") + ". Consider clinician review.",
	}
}

func displayName(user models.UserProfile) string {
	if user.Name != "" {
		return user.Name
	}
	return "User"
}
