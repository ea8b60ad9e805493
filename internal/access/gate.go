// Package access decides where a viewer may navigate.
package access

import (
	"path"
	"strings"

	"github.com/checkyourpaper/checkyourpaper-backend/internal/domain/user"
)

const (
	LoginPath    = "/login"
	WaitlistPath = "/waitlist"
	HomePath     = "/"
)

var publicRoutes = []string{"/login", "/about", "/legal"}

// Viewer is the signed-in user as the gate sees them. A nil *Viewer is anonymous.
type Viewer struct {
	Status user.Status
}

type Decision struct {
	Allow    bool   `json:"allow"`
	Redirect string `json:"redirect,omitempty"`
}

func allow() Decision { return Decision{Allow: true} }

func redirect(to string) Decision { return Decision{Redirect: to} }

// IsPublic reports whether p is reachable without signing in.
func IsPublic(p string) bool {
	p = Normalize(p)
	for _, r := range publicRoutes {
		if p == r || strings.HasPrefix(p, r+"/") {
			return true
		}
	}
	return false
}

func isWaitlist(p string) bool {
	return p == WaitlistPath || strings.HasPrefix(p, WaitlistPath+"/")
}

// Decide applies the navigation rules in order:
// anonymous viewers only reach public routes, pending or rejected viewers
// only reach the waitlist, approved viewers never see the waitlist.
func Decide(p string, v *Viewer) Decision {
	p = Normalize(p)
	if v == nil {
		if IsPublic(p) {
			return allow()
		}
		return redirect(LoginPath)
	}
	switch v.Status {
	case user.StatusApproved, user.StatusAdmin:
		if isWaitlist(p) {
			return redirect(HomePath)
		}
		return allow()
	default:
		// Unknown statuses are treated like pending.
		if isWaitlist(p) {
			return allow()
		}
		return redirect(WaitlistPath)
	}
}

// Normalize cleans p into an absolute path without query or fragment.
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
