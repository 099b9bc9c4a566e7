package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-authgate/exchauth/internal/models"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Username formats accepted by allowed_formats.
const (
	FormatNetbios  = "netbios"
	FormatEmail    = "email"
	FormatUsername = "username"
)

// Autodiscover is the domain_servers value that selects autodiscovery.
const Autodiscover = "autodiscover"

var (
	ErrPolicyInvalid = errors.New("invalid directory policy")

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// Policy is the directory policy: which logins are accepted, which servers
// authenticate them, and what is stamped onto the local user afterwards.
// A Policy is immutable once loaded; reloads produce a new value.
type Policy struct {
	CreateUnknownUser    bool                         `yaml:"create_unknown_user"`
	AllowedFormats       []string                     `yaml:"allowed_formats"        validate:"dive,oneof=netbios email username"`
	NetbiosToDomainMap   map[string]string            `yaml:"netbios_to_domain_map"`
	DefaultDomain        string                       `yaml:"default_domain"`
	DomainServers        map[string]string            `yaml:"domain_servers"`
	DomainUserProperties map[string]models.UserPolicy `yaml:"domain_user_properties" validate:"dive"`
}

// policyFile mirrors Policy with pointers so absent keys keep their defaults.
type policyFile struct {
	CreateUnknownUser    *bool                        `yaml:"create_unknown_user"`
	AllowedFormats       []string                     `yaml:"allowed_formats"`
	NetbiosToDomainMap   map[string]string            `yaml:"netbios_to_domain_map"`
	DefaultDomain        string                       `yaml:"default_domain"`
	DomainServers        map[string]string            `yaml:"domain_servers"`
	DomainUserProperties map[string]models.UserPolicy `yaml:"domain_user_properties"`
}

// AllowsFormat reports whether the username format is accepted.
func (p *Policy) AllowsFormat(format string) bool {
	for _, f := range p.AllowedFormats {
		if f == format {
			return true
		}
	}
	return false
}

// ResolveNetbios maps a NetBIOS alias to its domain, falling back to the
// alias itself.
func (p *Policy) ResolveNetbios(alias string) string {
	if dom, ok := p.NetbiosToDomainMap[alias]; ok {
		return dom
	}
	return alias
}

// Endpoint returns the configured server for a domain and whether the domain
// is allowed at all.
func (p *Policy) Endpoint(domain string) (string, bool) {
	endpoint, ok := p.DomainServers[domain]
	return endpoint, ok
}

// UserPolicy returns the attributes to stamp onto users of a domain.
func (p *Policy) UserPolicy(domain string) models.UserPolicy {
	return p.DomainUserProperties[domain]
}

// IsAutodiscover reports whether a domain_servers value selects autodiscovery.
func IsAutodiscover(endpoint string) bool {
	endpoint = strings.TrimSpace(endpoint)
	return endpoint == "" || strings.EqualFold(endpoint, Autodiscover)
}

// DefaultPolicy accepts every format and provisions unknown users, but
// allows no domain until domain_servers is configured.
func DefaultPolicy() *Policy {
	return &Policy{
		CreateUnknownUser:    true,
		AllowedFormats:       []string{FormatNetbios, FormatEmail, FormatUsername},
		NetbiosToDomainMap:   map[string]string{},
		DomainServers:        map[string]string{},
		DomainUserProperties: map[string]models.UserPolicy{},
	}
}

// LoadPolicy reads and validates the policy file at path, then applies the
// AUTH_EXCHANGE_* environment overrides.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", path, err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	applyPolicyEnv(p)
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParsePolicy decodes a YAML policy. Unknown keys, including unknown user
// attribute names, are rejected.
func ParsePolicy(data []byte) (*Policy, error) {
	var raw policyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrPolicyInvalid, err)
	}

	p := DefaultPolicy()
	if raw.CreateUnknownUser != nil {
		p.CreateUnknownUser = *raw.CreateUnknownUser
	}
	if raw.AllowedFormats != nil {
		p.AllowedFormats = lowerAll(raw.AllowedFormats)
	}
	p.DefaultDomain = strings.ToLower(strings.TrimSpace(raw.DefaultDomain))

	var err error
	if p.NetbiosToDomainMap, err = lowerKeys("netbios_to_domain_map", raw.NetbiosToDomainMap, true); err != nil {
		return nil, err
	}
	if p.DomainServers, err = lowerKeys("domain_servers", raw.DomainServers, false); err != nil {
		return nil, err
	}
	props := make(map[string]models.UserPolicy, len(raw.DomainUserProperties))
	for dom, up := range raw.DomainUserProperties {
		key := strings.ToLower(strings.TrimSpace(dom))
		if _, dup := props[key]; dup {
			return nil, fmt.Errorf("%w: domain_user_properties: duplicate domain %q", ErrPolicyInvalid, key)
		}
		props[key] = up
	}
	p.DomainUserProperties = props

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks field values and cross references.
func (p *Policy) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrPolicyInvalid, err)
	}

	var errs []error
	for dom := range p.DomainServers {
		if dom == "" {
			errs = append(errs, errors.New("domain_servers: empty domain"))
		}
	}
	for alias, dom := range p.NetbiosToDomainMap {
		if alias == "" || dom == "" {
			errs = append(errs, fmt.Errorf("netbios_to_domain_map: empty entry %q -> %q", alias, dom))
		}
	}
	for dom := range p.DomainUserProperties {
		if _, ok := p.DomainServers[dom]; !ok {
			errs = append(errs, fmt.Errorf(
				"domain_user_properties: domain %q is not listed in domain_servers", dom,
			))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrPolicyInvalid, errors.Join(errs...))
	}
	return nil
}

func applyPolicyEnv(p *Policy) {
	p.CreateUnknownUser = getEnvBool("AUTH_EXCHANGE_CREATE_UNKNOWN_USER", p.CreateUnknownUser)
	p.AllowedFormats = lowerAll(getEnvSlice("AUTH_EXCHANGE_ALLOWED_FORMATS", p.AllowedFormats))
	p.DefaultDomain = strings.ToLower(strings.TrimSpace(getEnv("AUTH_EXCHANGE_DEFAULT_DOMAIN", p.DefaultDomain)))
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

// lowerKeys lower-cases map keys (and values when lowerValues is set) so
// they compare equal to lower-cased usernames.
func lowerKeys(field string, in map[string]string, lowerValues bool) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for k, v := range in {
		key := strings.ToLower(strings.TrimSpace(k))
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("%w: %s: duplicate key %q", ErrPolicyInvalid, field, key)
		}
		v = strings.TrimSpace(v)
		if lowerValues {
			v = strings.ToLower(v)
		}
		out[key] = v
	}
	return out, nil
}
