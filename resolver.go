package auth

import "sort"

// Capability sources reported to operators
const (
	SourceRole  = "role"
	SourceGrant = "grant"
)

// AccessProfile is the explicitly loaded data permission decisions are computed from
type AccessProfile struct {
	AccountID        int64
	RoleID           int64
	RoleName         string
	RoleCapabilities []string
	Grants           []string
	Blocks           []string
}

// Decision is the outcome of Authorize. Missing and Blocked are diagnostics
// for operators and never rendered to clients.
type Decision struct {
	Allowed bool
	Missing []string
	Blocked []string
}

// EffectiveSet returns (role capabilities ∪ grants) − blocks
func EffectiveSet(p AccessProfile) map[string]struct{} {
	blocked := toSet(p.Blocks)
	out := make(map[string]struct{}, len(p.RoleCapabilities)+len(p.Grants))
	for _, list := range [][]string{p.RoleCapabilities, p.Grants} {
		for _, name := range list {
			if _, isBlocked := blocked[name]; isBlocked {
				continue
			}
			out[name] = struct{}{}
		}
	}
	return out
}

// EffectiveCapabilities returns the sorted effective capability names
func EffectiveCapabilities(p AccessProfile) []string {
	set := EffectiveSet(p)
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsCapabilityBlocked reports whether name is explicitly blocked for the account
func IsCapabilityBlocked(p AccessProfile, name string) bool {
	for _, b := range p.Blocks {
		if b == name {
			return true
		}
	}
	return false
}

// Authorize allows only when every required capability is effective.
func Authorize(p AccessProfile, required []string) Decision {
	if len(required) == 0 {
		return Decision{Allowed: true}
	}

	effective := EffectiveSet(p)
	blocked := toSet(p.Blocks)
	seen := make(map[string]struct{}, len(required))

	var d Decision
	for _, name := range required {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if _, ok := blocked[name]; ok {
			d.Blocked = append(d.Blocked, name)
			continue
		}
		if _, ok := effective[name]; !ok {
			d.Missing = append(d.Missing, name)
		}
	}
	d.Allowed = len(d.Missing) == 0 && len(d.Blocked) == 0
	return d
}

// CapabilityEntry is one effective capability and where it comes from
type CapabilityEntry struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// CapabilityReport lists effective capabilities with their source plus the blocked ones
type CapabilityReport struct {
	AccountID int64             `json:"account_id"`
	RoleID    int64             `json:"role_id"`
	RoleName  string            `json:"role_name"`
	Available []CapabilityEntry `json:"available"`
	Blocked   []string          `json:"blocked"`
}

// BuildCapabilityReport attributes each effective capability to the role
// when the role carries it, to a grant otherwise.
func BuildCapabilityReport(p AccessProfile) CapabilityReport {
	fromRole := toSet(p.RoleCapabilities)
	report := CapabilityReport{
		AccountID: p.AccountID,
		RoleID:    p.RoleID,
		RoleName:  p.RoleName,
		Available: []CapabilityEntry{},
		Blocked:   []string{},
	}

	for _, name := range EffectiveCapabilities(p) {
		source := SourceGrant
		if _, ok := fromRole[name]; ok {
			source = SourceRole
		}
		report.Available = append(report.Available, CapabilityEntry{Name: name, Source: source})
	}

	blocked := make([]string, 0, len(p.Blocks))
	for name := range toSet(p.Blocks) {
		blocked = append(blocked, name)
	}
	sort.Strings(blocked)
	report.Blocked = blocked

	return report
}

func toSet(list []string) map[string]struct{} {
	out := make(map[string]struct{}, len(list))
	for _, name := range list {
		out[name] = struct{}{}
	}
	return out
}
