// Package search indexes hosting requests for the admin dashboard.
// Meilisearch serves queries when reachable; Postgres ILIKE is the fallback.
package search

import "github.com/lemmaiot-tech/neka/internal/store"

// RequestRecord is the data indexed for a hosting request.
type RequestRecord struct {
	ID          string `json:"id"`
	ProjectName string `json:"projectName"`
	Subdomain   string `json:"subdomain"`
	ContactName string `json:"contactName"`
	Email       string `json:"email"`
	ProjectType string `json:"projectType"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

// RecordFromRequest maps a stored request to its indexed form.
func RecordFromRequest(request store.Request) RequestRecord {
	description := request.NewProjectDescription
	if description == "" {
		description = request.OtherProjectTypeDescription
	}
	return RequestRecord{
		ID:          request.ID,
		ProjectName: request.ProjectName,
		Subdomain:   request.Subdomain,
		ContactName: request.Name,
		Email:       request.Email,
		ProjectType: request.ProjectType,
		Status:      request.Status,
		Description: description,
	}
}
