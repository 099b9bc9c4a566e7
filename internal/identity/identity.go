// Package identity turns the username a person typed into the identity the
// directory and the local user store agree on.
//
// Three notations are accepted, checked in this order:
//
//	CORP\alice          netbios: alias resolved via netbios_to_domain_map
//	alice@example.com   email
//	alice               username: default_domain is assumed
//
// Parsing is pure: it reads the policy and performs no I/O.
package identity

import (
	"strings"

	"github.com/go-authgate/exchauth/internal/config"
)

// Format is the notation a username was written in.
type Format string

const (
	FormatNetbios  Format = config.FormatNetbios
	FormatEmail    Format = config.FormatEmail
	FormatUsername Format = config.FormatUsername
)

// Identity is a parsed, lower-cased login.
type Identity struct {
	Format    Format
	LocalUser string
	Domain    string

	// CanonicalLogin is the credential username sent to the directory and
	// the key of the local user record.
	CanonicalLogin string

	// SMTPAddress identifies the mailbox.
	SMTPAddress string
}

// IsDNSDomain reports whether domain looks like a DNS name rather than a
// short NetBIOS-style name. The only test is the presence of a dot.
func IsDNSDomain(domain string) bool {
	return strings.Contains(domain, ".")
}

// Parse classifies and normalizes raw against policy p.
func Parse(raw string, p *config.Policy) (*Identity, error) {
	username := strings.ToLower(raw)

	var id *Identity
	switch {
	case strings.Contains(username, `\`):
		if !p.AllowsFormat(config.FormatNetbios) {
			return nil, ErrFormatNotAllowed
		}
		i := strings.LastIndex(username, `\`)
		alias, user := username[:i], username[i+1:]
		dom := p.ResolveNetbios(alias)
		id = &Identity{
			Format:         FormatNetbios,
			LocalUser:      user,
			Domain:         dom,
			CanonicalLogin: username,
			SMTPAddress:    user + "@" + dom,
		}

	case strings.Contains(username, "@"):
		if !p.AllowsFormat(config.FormatEmail) {
			return nil, ErrFormatNotAllowed
		}
		i := strings.LastIndex(username, "@")
		id = &Identity{
			Format:         FormatEmail,
			LocalUser:      username[:i],
			Domain:         username[i+1:],
			CanonicalLogin: username,
			SMTPAddress:    username,
		}

	default:
		if !p.AllowsFormat(config.FormatUsername) {
			return nil, ErrFormatNotAllowed
		}
		dom := p.DefaultDomain
		id = &Identity{
			Format:      FormatUsername,
			LocalUser:   username,
			Domain:      dom,
			SMTPAddress: username + "@" + dom,
		}
		if IsDNSDomain(dom) {
			id.CanonicalLogin = username + "@" + dom
		} else {
			id.CanonicalLogin = dom + `\` + username
		}
	}

	if id.LocalUser == "" {
		return nil, ErrFormatNotAllowed
	}
	if id.Domain == "" {
		return nil, ErrDomainNotAllowed
	}
	if _, ok := p.Endpoint(id.Domain); !ok {
		return nil, ErrDomainNotAllowed
	}
	return id, nil
}
