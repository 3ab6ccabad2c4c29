package fs

import (
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("url.Parse(%q) error = %v", raw, err)
	}
	return u
}

func cookieValue(cookies []*http.Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestFSCookieJar_SetAndGet(t *testing.T) {
	jar, err := NewFSCookieJar(filepath.Join(t.TempDir(), "cookies.json"), "")
	if err != nil {
		t.Fatalf("NewFSCookieJar() error = %v", err)
	}

	u := mustParse(t, "http://localhost:5000/graphql")

	// Initially empty
	if got := jar.Cookies(u); len(got) != 0 {
		t.Errorf("expected no cookies, got %v", got)
	}

	jar.SetCookies(u, []*http.Cookie{{Name: "jid", Value: "refresh-1", Path: "/", HttpOnly: true}})

	// visible from another path on the same server
	if got := cookieValue(jar.Cookies(mustParse(t, "http://localhost:5000/refresh_token")), "jid"); got != "refresh-1" {
		t.Errorf("jid = %q, want refresh-1", got)
	}
	// and from another port of the same host, as cookies ignore ports
	if got := cookieValue(jar.Cookies(mustParse(t, "http://localhost:9090/")), "jid"); got != "refresh-1" {
		t.Errorf("jid on another port = %q, want refresh-1", got)
	}
	// but not from another host
	if got := jar.Cookies(mustParse(t, "http://127.0.0.1:5000/")); len(got) != 0 {
		t.Errorf("expected no cookies for another host, got %v", got)
	}
}

func TestFSCookieJar_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	u := mustParse(t, "http://localhost:5000/")

	jar1, err := NewFSCookieJar(path, "")
	if err != nil {
		t.Fatalf("NewFSCookieJar() error = %v", err)
	}
	jar1.SetCookies(u, []*http.Cookie{
		{Name: "jid", Value: "persisted", Path: "/", MaxAge: 3600, HttpOnly: true},
		{Name: "stale", Value: "old", Path: "/", Expires: time.Now().Add(-time.Hour)},
	})
	if err := jar1.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Fatal("cookies file not created")
	}

	// Create new jar from same file
	jar2, err := NewFSCookieJar(path, "")
	if err != nil {
		t.Fatalf("NewFSCookieJar() error = %v", err)
	}
	cookies := jar2.Cookies(u)
	if got := cookieValue(cookies, "jid"); got != "persisted" {
		t.Errorf("jid = %q, want persisted", got)
	}
	if got := cookieValue(cookies, "stale"); got != "" {
		t.Errorf("expired cookie should not be persisted, got %q", got)
	}
	if servers := jar2.ListServers(); len(servers) != 1 || servers[0] != "localhost" {
		t.Errorf("ListServers() = %v", servers)
	}
}

func TestFSCookieJar_DeletedCookieNotPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	u := mustParse(t, "http://localhost:5000/")

	jar, err := NewFSCookieJar(path, "")
	if err != nil {
		t.Fatalf("NewFSCookieJar() error = %v", err)
	}
	jar.SetCookies(u, []*http.Cookie{{Name: "jid", Value: "refresh-1", Path: "/"}})
	// a logout response clears the cookie
	jar.SetCookies(u, []*http.Cookie{{Name: "jid", Value: "", Path: "/", MaxAge: -1}})
	if err := jar.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reloaded, err := NewFSCookieJar(path, "")
	if err != nil {
		t.Fatalf("NewFSCookieJar() error = %v", err)
	}
	if got := reloaded.Cookies(u); len(got) != 0 {
		t.Errorf("expected no cookies after reload, got %v", got)
	}
}

func TestFSCookieJar_Clear(t *testing.T) {
	jar, err := NewFSCookieJar(filepath.Join(t.TempDir(), "cookies.json"), "")
	if err != nil {
		t.Fatalf("NewFSCookieJar() error = %v", err)
	}

	a := mustParse(t, "http://localhost:5000/")
	b := mustParse(t, "http://127.0.0.1:9090/")
	jar.SetCookies(a, []*http.Cookie{{Name: "jid", Value: "a", Path: "/"}})
	jar.SetCookies(b, []*http.Cookie{{Name: "jid", Value: "b", Path: "/"}})

	if err := jar.Clear("http://localhost:5000"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}

	if got := jar.Cookies(a); len(got) != 0 {
		t.Errorf("cookies should be cleared, got %v", got)
	}
	if got := cookieValue(jar.Cookies(b), "jid"); got != "b" {
		t.Errorf("other host's cookie = %q, want b", got)
	}
	if servers := jar.ListServers(); len(servers) != 1 || servers[0] != "127.0.0.1" {
		t.Errorf("ListServers() = %v, want [127.0.0.1]", servers)
	}
}

func TestFSCookieJar_PortsShareCookies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")
	a := mustParse(t, "http://localhost:5000/")
	b := mustParse(t, "http://localhost:9090/")

	jar, err := NewFSCookieJar(path, "")
	if err != nil {
		t.Fatalf("NewFSCookieJar() error = %v", err)
	}
	jar.SetCookies(a, []*http.Cookie{{Name: "jid", Value: "a", Path: "/"}})
	jar.SetCookies(b, []*http.Cookie{{Name: "jid", Value: "b", Path: "/"}})

	// the later write wins on both ports, live and after a reload
	if got := cookieValue(jar.Cookies(a), "jid"); got != "b" {
		t.Errorf("live jid on :5000 = %q, want b", got)
	}
	if err := jar.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	reloaded, err := NewFSCookieJar(path, "")
	if err != nil {
		t.Fatalf("NewFSCookieJar() error = %v", err)
	}
	for _, u := range []*url.URL{a, b} {
		if got := cookieValue(reloaded.Cookies(u), "jid"); got != "b" {
			t.Errorf("reloaded jid on %s = %q, want b", u.Host, got)
		}
	}
	if servers := reloaded.ListServers(); len(servers) != 1 || servers[0] != "localhost" {
		t.Errorf("ListServers() = %v, want [localhost]", servers)
	}

	// clearing through one port clears the host, and stays cleared on reload
	if err := reloaded.Clear("http://localhost:9090"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	for _, u := range []*url.URL{a, b} {
		if got := reloaded.Cookies(u); len(got) != 0 {
			t.Errorf("cookies on %s after Clear = %v, want none", u.Host, got)
		}
	}
	if err := reloaded.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	again, err := NewFSCookieJar(path, "")
	if err != nil {
		t.Fatalf("NewFSCookieJar() error = %v", err)
	}
	if got := again.Cookies(a); len(got) != 0 {
		t.Errorf("cookies after Clear and reload = %v, want none", got)
	}
	if servers := again.ListServers(); len(servers) != 0 {
		t.Errorf("ListServers() = %v, want none", servers)
	}
}

func TestFSCookieJar_ClearByHostName(t *testing.T) {
	jar, err := NewFSCookieJar(filepath.Join(t.TempDir(), "cookies.json"), "")
	if err != nil {
		t.Fatalf("NewFSCookieJar() error = %v", err)
	}
	u := mustParse(t, "http://localhost:5000/api/graphql")
	// no Path attribute: the default path is the request's directory
	jar.SetCookies(u, []*http.Cookie{{Name: "jid", Value: "x"}})
	if got := cookieValue(jar.Cookies(mustParse(t, "http://localhost:5000/api/refresh_token")), "jid"); got != "x" {
		t.Fatalf("jid = %q, want x", got)
	}

	if err := jar.Clear("localhost"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if got := jar.Cookies(mustParse(t, "http://localhost:5000/api/refresh_token")); len(got) != 0 {
		t.Errorf("cookies after Clear = %v, want none", got)
	}
}

func TestFSCookieJar_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.json")

	jar, err := NewFSCookieJar(path, "")
	if err != nil {
		t.Fatalf("NewFSCookieJar() error = %v", err)
	}
	jar.SetCookies(mustParse(t, "http://localhost:5000/"), []*http.Cookie{{Name: "jid", Value: "x", Path: "/"}})
	jar.Save()

	// Check file permissions (should be 0600)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	mode := info.Mode().Perm()
	if mode != 0600 {
		t.Errorf("file permissions = %o, want 0600", mode)
	}
}

func TestFSCookieJar_DefaultPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	jar, err := NewFSCookieJar("", "testapp")
	if err != nil {
		t.Fatalf("NewFSCookieJar() error = %v", err)
	}

	path := jar.Path()
	if path == "" {
		t.Error("path should not be empty")
	}
	if filepath.Base(path) != "cookies.json" {
		t.Errorf("path = %s, want a cookies.json file", path)
	}
}
