package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/peterkaminski/textpile/internal/domain"
)

type envVar struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	PossibleValues string `json:"possibleValues"`
	Description    string `json:"description"`
}

type envCategory struct {
	Category  string   `json:"category"`
	Variables []envVar `json:"variables"`
}

// handleAdminEnv reports the instance's resolved configuration, grouped by
// category, to a bearer-authenticated admin.
func (s *Server) handleAdminEnv(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	if err := s.svc.AuthorizeAdmin(token); err != nil {
		switch {
		case errors.Is(err, domain.ErrAdminNotConfigured):
			writeError(w, http.StatusForbidden, "Admin functionality not configured.")
		default:
			writeError(w, http.StatusUnauthorized, "Unauthorized.")
		}
		return
	}

	categories := []envCategory{
		{
			Category: "Identity & Branding",
			Variables: []envVar{
				{"INSTANCE_NAME", orUnset(s.cfg.InstanceName), "Any string", "Name of this Textpile instance"},
				{"COMMUNITY_NAME", orUnset(s.cfg.CommunityName), "Any string", "Community or group using this instance"},
				{"ADMIN_EMAIL", orUnset(s.cfg.AdminEmail), "Email address", "Contact email shown in footer"},
			},
		},
		{
			Category: "Access Control",
			Variables: []envVar{
				{"ADD_POST_PASSWORD", orUnset(s.cfg.SubmitToken), "Random string", "Shared password for adding posts"},
				{"ADMIN_TOKEN", orUnset(s.cfg.AdminToken), "Random string", "Admin access token"},
			},
		},
		{
			Category: "Content Retention",
			Variables: []envVar{
				{"DEFAULT_RETENTION", orUnset(s.cfg.DefaultRetention), "1week, 1month, 3months, 6months, 1year", "Default retention period for new posts"},
			},
		},
		{
			Category: "Display & Formatting",
			Variables: []envVar{
				{"DATE_FORMAT", orUnset(s.cfg.DateFormat), "Date format string (e.g., 'YYYY-MM-DD', 'MMM D, YYYY')", "Date display format"},
				{"TIME_FORMAT", orUnset(s.cfg.TimeFormat), "Time format string (e.g., 'HH:mm', 'h:mm a')", "Time display format"},
			},
		},
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"envVars": categories,
	})
}

func orUnset(s string) string {
	if s == "" {
		return "(unset)"
	}
	return s
}
