// FilePath: server/worker/internal/models/api.models.filters.go
package models

// AnalyticsQuery defines the query parameters accepted by the analytics
// endpoints. Hours bounds the trailing window; zero means the handler
// default.
type AnalyticsQuery struct {
	HomeID string `schema:"home_id"`
	Hours  int    `schema:"hours"`
}
