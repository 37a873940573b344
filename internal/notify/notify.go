package notify

import (
	"context"
	"log/slog"
	"time"
)

const (
	KindAutoHidden  = "content_auto_hidden"
	KindTextFlagged = "content_text_flagged"
)

// Request asks an external delivery service to tell someone about a
// moderation event. The engine never delivers anything itself.
type Request struct {
	Kind        string    `json:"kind"`
	Recipients  []string  `json:"recipients"`
	Audience    string    `json:"audience,omitempty"`
	ContentType string    `json:"content_type"`
	ContentID   string    `json:"content_id"`
	ContentURL  string    `json:"content_url,omitempty"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}

// AudienceModerators addresses every moderator instead of listed users.
const AudienceModerators = "moderators"

type Notifier interface {
	Notify(ctx context.Context, req Request) error
}

// LogNotifier only writes requests to the log; used when no broker is set up.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, req Request) error {
	slog.Info("notification requested",
		"kind", req.Kind,
		"content_type", req.ContentType,
		"content_id", req.ContentID,
		"recipients", len(req.Recipients),
		"audience", req.Audience,
	)
	return nil
}
