package dto

import (
	"github.com/ahmetcoskunkizilkaya/modengine/internal/models"
)

type CreateReportRequest struct {
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	Reason      string `json:"reason"`
	Details     string `json:"details"`
	ContentURL  string `json:"content_url"`
}

type ReportResponse struct {
	Report     models.ContentReport      `json:"report"`
	Score      models.ContentReportScore `json:"score"`
	AutoHidden bool                      `json:"auto_hidden"`
}

type ResolveReportRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type ResetScoreRequest struct {
	Reason string `json:"reason"`
}

type AnalyzeTextRequest struct {
	ContentType string `json:"content_type"`
	Text        string `json:"text"`
}

type ScreenContentRequest struct {
	ContentType string `json:"content_type"`
	ContentID   string `json:"content_id"`
	ContentURL  string `json:"content_url"`
	Text        string `json:"text"`
}

type ListReportsResponse struct {
	Reports []models.ContentReport `json:"reports"`
	Total   int64                  `json:"total"`
	Limit   int                    `json:"limit"`
	Offset  int                    `json:"offset"`
}

type SiteScaleResponse struct {
	SiteScale float64 `json:"site_scale"`
}
