package hooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"chub/internal/models"
	"chub/internal/validation"
)

// DefaultPrayerLimit is the number of random prayer requests shown when no
// limit is given.
const DefaultPrayerLimit = 3

// PrayerRequests covers anonymous prayer requests.
type PrayerRequests struct {
	c *core
}

// Random reads up to limit random prayer requests.
func (pr *PrayerRequests) Random(limit int) *Query[[]models.PrayerRequest] {
	if limit <= 0 {
		limit = DefaultPrayerLimit
	}
	return newQuery(pr.c, RandomPrayersKey(limit), true, "Failed to load prayer requests",
		func(ctx context.Context, token string) ([]models.PrayerRequest, error) {
			var out models.PrayerRequestsResponse
			q := url.Values{"limit": {strconv.Itoa(limit)}}
			err := pr.c.call(ctx, http.MethodGet, "/prayer-requests/random", "/prayer-requests/random", token, q, nil, &out)
			return out.PrayerRequests, err
		})
}

// Get reads one prayer request.
func (pr *PrayerRequests) Get(id uint) *Query[models.PrayerRequest] {
	return newQuery(pr.c, PrayerRequestKey(id), id != 0, "Failed to load prayer request",
		func(ctx context.Context, token string) (models.PrayerRequest, error) {
			var out models.PrayerRequest
			err := pr.c.call(ctx, http.MethodGet, "/prayer-requests/{id}", fmt.Sprintf("/prayer-requests/%d", id), token, nil, nil, &out)
			return out, err
		})
}

// Submit sends a prayer request. Random selections are not refreshed.
func (pr *PrayerRequests) Submit(ctx context.Context, content string) (models.PrayerRequest, error) {
	m := &Mutation[string, models.PrayerRequest]{
		c:        pr.c,
		action:   "submit a prayer request",
		validate: validation.ValidatePrayerRequest,
		do: func(ctx context.Context, token string, content string) (models.PrayerRequest, error) {
			var out models.PrayerRequest
			err := pr.c.call(ctx, http.MethodPost, "/prayer-requests", "/prayer-requests", token, nil,
				models.CreatePrayerRequest{Content: content}, &out)
			return out, err
		},
		success: "Prayer request submitted",
		failure: "Failed to submit prayer request",
	}
	return m.Run(ctx, content)
}
