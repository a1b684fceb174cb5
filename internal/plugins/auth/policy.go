package auth

import "strings"

// Well-known paths.
const (
	LoginPath   = "/login"
	LandingPath = "/dashboard"
)

// RoleRule restricts everything under Prefix to sessions carrying Role.
type RoleRule struct {
	Prefix string
	Role   string
}

// AccessPolicy decides, per request, whether a path may be served given
// the decoded session (or its absence). It holds no mutable state and is
// safe for concurrent use.
type AccessPolicy struct {
	// PublicPrefixes are reachable without a session.
	PublicPrefixes []string

	// RoleRules are checked in order; the first matching prefix wins.
	RoleRules []RoleRule

	// LoginPath receives unauthenticated visitors.
	LoginPath string

	// LandingPath receives authenticated visitors who strayed into another
	// role's area.
	LandingPath string
}

// DefaultPublicPrefixes are the routes reachable without signing in.
var DefaultPublicPrefixes = []string{
	"/",
	"/login",
	"/register",
	"/verify-email",
	"/forgot-password",
	"/reset-password",
	"/about",
	"/research",
	"/healthz",
	"/static",
	"/favicon.ico",
	"/api/auth/login",
	"/api/auth/register",
	"/api/auth/verify-email",
	"/api/auth/resend-code",
	"/api/auth/forgot-password",
	"/api/auth/reset-password",
	"/api/auth/logout",
	"/api/auth/me",
}

// DefaultRoleRules maps each role's area to that role.
var DefaultRoleRules = []RoleRule{
	{Prefix: "/admin", Role: RoleAdmin},
	{Prefix: "/doctor", Role: RoleDoctor},
	{Prefix: "/therapist", Role: RoleTherapist},
	{Prefix: "/counsellor", Role: RoleCounsellor},
	{Prefix: "/patient", Role: RolePatient},
}

// roleLandings is where each role starts after login.
var roleLandings = map[string]string{
	RoleAdmin:      "/admin/dashboard",
	RoleDoctor:     "/doctor/dashboard",
	RoleTherapist:  "/therapist/dashboard",
	RoleCounsellor: "/counsellor/dashboard",
	RolePatient:    "/patient/dashboard",
}

// DefaultAccessPolicy returns the portal's route policy.
func DefaultAccessPolicy() *AccessPolicy {
	return &AccessPolicy{
		PublicPrefixes: DefaultPublicPrefixes,
		RoleRules:      DefaultRoleRules,
		LoginPath:      LoginPath,
		LandingPath:    LandingPath,
	}
}

// Evaluate returns the decision for path. A nil session means the request
// carried no valid token.
func (p *AccessPolicy) Evaluate(path string, session *SessionClaims) AccessDecision {
	if session == nil {
		if p.IsPublic(path) {
			return AccessDecision{Allowed: true}
		}
		return AccessDecision{RedirectTo: p.LoginPath, Reason: ReasonUnauthenticated}
	}

	if rule, ok := p.ruleFor(path); ok && session.Role != rule.Role {
		// Authenticated but under-privileged: never bounce to login.
		return AccessDecision{RedirectTo: p.LandingPath, Reason: ReasonForbidden}
	}

	return AccessDecision{Allowed: true}
}

// IsPublic reports whether path is on the public allow-list.
func (p *AccessPolicy) IsPublic(path string) bool {
	for _, prefix := range p.PublicPrefixes {
		if matchesPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (p *AccessPolicy) ruleFor(path string) (RoleRule, bool) {
	for _, rule := range p.RoleRules {
		if matchesPrefix(path, rule.Prefix) {
			return rule, true
		}
	}
	return RoleRule{}, false
}

// matchesPrefix is true when path equals prefix or lies beneath it as a
// whole segment, so "/admin" covers "/admin/users" but not "/administer".
// The root prefix "/" only ever matches "/" itself.
func matchesPrefix(path, prefix string) bool {
	if path == prefix {
		return true
	}
	if prefix == "/" {
		return false
	}
	return strings.HasPrefix(path, prefix+"/")
}

// LandingPathFor returns the dashboard a role lands on after login.
func LandingPathFor(role string) string {
	if path, ok := roleLandings[role]; ok {
		return path
	}
	return LandingPath
}
