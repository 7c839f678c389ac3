package proxy_test

import (
	"testing"

	"folio/internal/proxy"
)

func TestResolveRecoversCanonicalURL(t *testing.T) {
	scheme, err := proxy.Compile("https://%h.proxy.example.com/%p", true)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	got := scheme.Resolve("https://www-example-com.proxy.example.com/article/1?view=full")
	want := "https://www.example.com/article/1?view=full"
	if got != want {
		t.Fatalf("Resolve = %q, want %q", got, want)
	}
}

func TestResolveWithoutHyphenSubstitution(t *testing.T) {
	scheme, err := proxy.Compile("https://%h.ezproxy.example.edu/%p", false)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	got := scheme.Resolve("https://www.example.com.ezproxy.example.edu/page")
	if got != "https://www.example.com/page" {
		t.Fatalf("Resolve = %q", got)
	}
}

func TestResolveNonMatchingURLUnchanged(t *testing.T) {
	scheme, err := proxy.Compile("https://%h.proxy.example.com/%p", true)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	raw := "https://www.example.com/direct"
	if got := scheme.Resolve(raw); got != raw {
		t.Fatalf("non-matching URL should pass through, got %q", got)
	}
}

func TestRoundTrip(t *testing.T) {
	scheme, err := proxy.Compile("https://%h.proxy.example.com/%p", true)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	urls := []string{
		"https://www.example.com/article/1",
		"https://journals.example.org/a/b/c?issue=4",
	}
	for _, u := range urls {
		proxied := scheme.Rewrite(u)
		if got := scheme.Resolve(proxied); got != u {
			t.Fatalf("round trip failed: %q -> %q -> %q", u, proxied, got)
		}
		if again := scheme.Rewrite(scheme.Resolve(proxied)); again != proxied {
			t.Fatalf("rewrite(resolve(%q)) = %q, want %q", proxied, again, proxied)
		}
	}
}

func TestCompileRejectsBadTemplates(t *testing.T) {
	for _, tmpl := range []string{"", "https://proxy.example.com/%p", "%h%h/%p"} {
		if _, err := proxy.Compile(tmpl, false); err == nil {
			t.Fatalf("expected error for template %q", tmpl)
		}
	}
}

func TestCompileAddsSchemePrefix(t *testing.T) {
	scheme, err := proxy.Compile("%h.proxy.example.com/%p", false)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got := scheme.Resolve("https://www.example.com.proxy.example.com/x")
	if got != "https://www.example.com/x" {
		t.Fatalf("Resolve = %q", got)
	}
}

func TestNilSchemePassesThrough(t *testing.T) {
	var scheme *proxy.Scheme
	if got := scheme.Resolve("https://example.com/a"); got != "https://example.com/a" {
		t.Fatalf("nil scheme should pass through, got %q", got)
	}

	compiled, err := proxy.CompileDescriptor(nil)
	if err != nil {
		t.Fatalf("CompileDescriptor(nil): %v", err)
	}
	if compiled != nil {
		t.Fatal("expected nil scheme for nil descriptor")
	}
}

func TestDetectDescriptorFromHyphenatedHost(t *testing.T) {
	desc := proxy.DetectDescriptor("https://www-example-com.proxy.example.com/article")
	if desc == nil {
		t.Fatal("expected a descriptor for a hyphenated proxy host")
	}
	if desc.Scheme != "https://%h.proxy.example.com/%p" {
		t.Fatalf("Scheme = %q", desc.Scheme)
	}
	if !desc.DotsToHyphens {
		t.Fatal("hyphenated host implies dotsToHyphens")
	}

	scheme, err := proxy.Compile(desc.Scheme, desc.DotsToHyphens)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	got := scheme.Resolve("https://www-example-com.proxy.example.com/article")
	if got != "https://www.example.com/article" {
		t.Fatalf("Resolve = %q", got)
	}
}

func TestDetectDescriptorIgnoresPlainHosts(t *testing.T) {
	for _, raw := range []string{
		"https://www.example.com/article",
		"https://api-v2.example.com/article",
		"https://www-example-com/article",
		"not a url",
	} {
		if desc := proxy.DetectDescriptor(raw); desc != nil {
			t.Fatalf("DetectDescriptor(%q) = %+v, want nil", raw, desc)
		}
	}
}
