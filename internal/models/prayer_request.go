package models

import "time"

// PrayerRequest is an anonymous prayer request.
type PrayerRequest struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CreatePrayerRequest is the payload for POST /prayer-requests.
type CreatePrayerRequest struct {
	Content string `json:"content"`
}

// PrayerRequestsResponse wraps GET /prayer-requests/random.
type PrayerRequestsResponse struct {
	PrayerRequests []PrayerRequest `json:"prayer_requests"`
}

// UploadResponse is returned by the image upload endpoint.
type UploadResponse struct {
	URL string `json:"url"`
}
