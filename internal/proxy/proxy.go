// Package proxy inverts host-substitution proxy schemes so captured
// URLs are stored in canonical form.
//
// A scheme is a template such as "https://%h.proxy.example.com/%p"
// where %h stands for the original host and %p for the path. Some
// proxies additionally substitute hyphens for dots in the host
// (dotsToHyphens), which resolution reverses.
package proxy

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Descriptor is the proxy description supplied by the browser
// extension alongside a save request.
type Descriptor struct {
	Scheme        string `json:"scheme"`
	DotsToHyphens bool   `json:"dotsToHyphens"`
}

// Scheme is a compiled proxy scheme.
type Scheme struct {
	template      string
	dotsToHyphens bool
	re            *regexp.Regexp
	hostGroup     int
	pathGroup     int
}

// Compile builds a Scheme from a template. The template must contain
// both the %h and %p placeholders exactly once.
func Compile(template string, dotsToHyphens bool) (*Scheme, error) {
	template = strings.TrimSpace(template)
	if template == "" {
		return nil, fmt.Errorf("proxy scheme is empty")
	}
	if strings.Count(template, "%h") != 1 || strings.Count(template, "%p") != 1 {
		return nil, fmt.Errorf("proxy scheme %q must contain %%h and %%p exactly once", template)
	}
	if !strings.Contains(template, "://") {
		template = "https://" + template
	}

	var pattern strings.Builder
	pattern.WriteString("^")
	group := 0
	hostGroup, pathGroup := 0, 0
	rest := template
	for rest != "" {
		hIdx := strings.Index(rest, "%h")
		pIdx := strings.Index(rest, "%p")
		next, placeholder := -1, ""
		switch {
		case hIdx >= 0 && (pIdx < 0 || hIdx < pIdx):
			next, placeholder = hIdx, "%h"
		case pIdx >= 0:
			next, placeholder = pIdx, "%p"
		}
		if next < 0 {
			pattern.WriteString(regexp.QuoteMeta(rest))
			break
		}
		pattern.WriteString(regexp.QuoteMeta(rest[:next]))
		group++
		if placeholder == "%h" {
			pattern.WriteString(`([^/:]+)`)
			hostGroup = group
		} else {
			pattern.WriteString(`(.*)`)
			pathGroup = group
		}
		rest = rest[next+2:]
	}
	pattern.WriteString("$")

	re, err := regexp.Compile(pattern.String())
	if err != nil {
		return nil, fmt.Errorf("compile proxy scheme %q: %w", template, err)
	}

	return &Scheme{
		template:      template,
		dotsToHyphens: dotsToHyphens,
		re:            re,
		hostGroup:     hostGroup,
		pathGroup:     pathGroup,
	}, nil
}

// CompileDescriptor compiles the descriptor's scheme. A nil descriptor
// yields a nil Scheme, which resolves every URL to itself.
func CompileDescriptor(desc *Descriptor) (*Scheme, error) {
	if desc == nil || strings.TrimSpace(desc.Scheme) == "" {
		return nil, nil
	}
	return Compile(desc.Scheme, desc.DotsToHyphens)
}

// DetectDescriptor guesses the proxy descriptor from a proxied URL's
// shape. Hyphenating proxies embed the original host as the first
// host label ("www-example-com.proxy.example.com"); the rest of the
// host is the proxy's own domain. Returns nil when the URL does not
// look proxied.
func DetectDescriptor(raw string) *Descriptor {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	label, domain, ok := strings.Cut(u.Hostname(), ".")
	if !ok || !strings.Contains(domain, ".") {
		return nil
	}
	// A hyphenated host has at least two labels plus a TLD.
	if strings.Count(label, "-") < 2 {
		return nil
	}
	protocol := u.Scheme
	if protocol == "" {
		protocol = "https"
	}
	return &Descriptor{
		Scheme:        protocol + "://%h." + domain + "/%p",
		DotsToHyphens: true,
	}
}

// Resolve recovers the canonical URL from a proxied one. URLs that do
// not match the scheme's shape are returned unchanged; resolution is
// best-effort and never fails.
func (s *Scheme) Resolve(raw string) string {
	if s == nil {
		return raw
	}
	m := s.re.FindStringSubmatch(raw)
	if m == nil {
		return raw
	}
	host := m[s.hostGroup]
	if s.dotsToHyphens {
		host = strings.ReplaceAll(host, "-", ".")
	}
	path := m[s.pathGroup]

	protocol := "https://"
	if strings.HasPrefix(raw, "http://") {
		protocol = "http://"
	}
	return protocol + host + "/" + strings.TrimPrefix(path, "/")
}

// Rewrite maps a canonical URL through the scheme, producing the
// proxied form. URLs that cannot be parsed are returned unchanged.
func (s *Scheme) Rewrite(raw string) string {
	if s == nil {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	host := u.Host
	if s.dotsToHyphens {
		host = strings.ReplaceAll(host, ".", "-")
	}
	path := strings.TrimPrefix(u.Path, "/")
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	out := strings.Replace(s.template, "%h", host, 1)
	return strings.Replace(out, "%p", path, 1)
}

// Template returns the scheme template.
func (s *Scheme) Template() string {
	if s == nil {
		return ""
	}
	return s.template
}

// DotsToHyphens reports whether the scheme hyphenates host dots.
func (s *Scheme) DotsToHyphens() bool {
	return s != nil && s.dotsToHyphens
}
