package httpx

import (
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/splax/lumia/internal/dashboard"
	"github.com/splax/lumia/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

var dashboardTabs = []string{"overview", "models", "deployments", "firewall", "logs"}

func parseTemplates() (*template.Template, error) {
	tmplFS, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	return template.New("base").Funcs(template.FuncMap{
		"statusClass": statusClass,
		"logClass":    logClass,
		"formatCount": formatCount,
		"percentOf":   percentOf,
		"metricURL":   metricURL,
		"tabURL":      tabURL,
	}).ParseFS(tmplFS, "*.html")
}

func (r *Router) handleHome(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		http.NotFound(w, req)
		return
	}
	if req.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tab := strings.TrimSpace(req.URL.Query().Get("tab"))
	if !validTab(tab) {
		tab = "overview"
	}
	cat := r.dash.Catalog()
	data := map[string]any{
		"Title":    "Lumia Dashboard",
		"Flash":    flashFromRequest(req),
		"Tab":      tab,
		"Tabs":     dashboardTabs,
		"Snapshot": r.dash.Snapshot(),
		"Panels":   cat.Panels(),
		"Models":   cat.Models(),
	}
	if id := strings.TrimSpace(req.URL.Query().Get("metric")); id != "" {
		data["Detail"] = r.dash.Detail(id)
	}
	r.render(w, "dashboard", data)
}

func (r *Router) handleRefreshForm(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := req.ParseForm(); err != nil {
		r.renderError(w, http.StatusBadRequest, "invalid form payload")
		return
	}
	result := r.dash.Refresh(context.WithoutCancel(req.Context()))
	target := "/"
	if tab := req.PostFormValue("tab"); validTab(tab) {
		target = tabURL(tab)
	}
	redirectWithFlash(w, req, target, flashMessage(result))
}

func flashMessage(result dashboard.RefreshResult) string {
	if result.Toast.Description == "" {
		return result.Toast.Title
	}
	return result.Toast.Title + ": " + result.Toast.Description
}

func (r *Router) render(w http.ResponseWriter, tpl string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := r.templates.ExecuteTemplate(w, tpl, data); err != nil {
		r.logger.Error("template render failed", "template", tpl, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func (r *Router) renderError(w http.ResponseWriter, status int, message string) {
	r.logger.Warn("dashboard error", "status", status, "message", message)
	http.Error(w, message, status)
}

func validTab(tab string) bool {
	for _, t := range dashboardTabs {
		if t == tab {
			return true
		}
	}
	return false
}

func wantsHTML(req *http.Request) bool {
	return !strings.HasPrefix(req.URL.Path, "/api/")
}

func flashFromRequest(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("flash"))
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, target, message string) {
	if strings.TrimSpace(target) == "" {
		target = "/"
	}
	u, err := url.Parse(target)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if strings.TrimSpace(message) != "" {
		q := u.Query()
		q.Set("flash", message)
		u.RawQuery = q.Encode()
	}
	http.Redirect(w, r, u.String(), http.StatusSeeOther)
}

func tabURL(tab string) string {
	return "/?tab=" + url.QueryEscape(tab)
}

func metricURL(tab, id string) string {
	return "/?tab=" + url.QueryEscape(tab) + "&metric=" + url.QueryEscape(id)
}

func statusClass(status domain.DeploymentStatus) string {
	switch status {
	case domain.DeploymentSuccess:
		return "ok"
	case domain.DeploymentPending:
		return "pending"
	case domain.DeploymentFailure:
		return "failed"
	default:
		return "other"
	}
}

func logClass(t domain.LogType) string {
	switch t {
	case domain.LogError:
		return "failed"
	case domain.LogWarning:
		return "pending"
	default:
		return "info"
	}
}

// formatCount renders n with thousands separators.
func formatCount(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func percentOf(part, total int64) int {
	if total <= 0 || part <= 0 {
		return 0
	}
	pct := int(float64(part) / float64(total) * 100)
	if pct > 100 {
		return 100
	}
	return pct
}
