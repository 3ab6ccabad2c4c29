// Package fs provides a file system-backed cookie jar for the authlink client,
// so the refresh cookie survives process restarts.
package fs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// FSCookieJar is an http.CookieJar that keeps cookies in a JSON file on the
// filesystem. Lookups are served by a net/http/cookiejar.Jar; the file only
// records what servers have set so it can be replayed on the next start.
//
// Like the inner jar, the file is keyed by host name: ports and schemes of
// the same host share one set of cookies.
type FSCookieJar struct {
	mu       sync.Mutex
	path     string
	jar      *cookiejar.Jar
	servers  map[string]map[string]*storedCookie
	modified bool
}

// storedCookie is the on-disk form of a cookie
type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// id matches the inner jar's identity for a cookie: domain, path and name.
func (c *storedCookie) id() string {
	return c.Domain + ";" + c.Path + ";" + c.Name
}

func (c *storedCookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}

func (c *storedCookie) httpCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
}

// cookieFile is the JSON structure stored on disk
type cookieFile struct {
	Servers map[string][]*storedCookie `json:"servers"`
}

// NewFSCookieJar creates a new FS-backed cookie jar.
// If path is empty, defaults to ~/.config/<appName>/cookies.json
func NewFSCookieJar(path string, appName string) (*FSCookieJar, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("could not determine config directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
		if appName == "" {
			appName = "authlink"
		}
		path = filepath.Join(configDir, appName, "cookies.json")
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	j := &FSCookieJar{
		path:    path,
		jar:     jar,
		servers: make(map[string]map[string]*storedCookie),
	}

	// Load existing cookies if file exists
	if err := j.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return j, nil
}

// load reads cookies from disk and replays the unexpired ones into the jar
func (j *FSCookieJar) load() error {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return err
	}

	var file cookieFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse cookies file: %w", err)
	}

	now := time.Now()
	for host, cookies := range file.Servers {
		if host == "" {
			continue
		}
		live := make([]*http.Cookie, 0, len(cookies))
		for _, c := range cookies {
			if c.expired(now) {
				j.modified = true
				continue
			}
			j.remember(host, c)
			live = append(live, c.httpCookie())
		}
		j.jar.SetCookies(hostURL(host), live)
	}

	return nil
}

// hostKey returns the host name a URL's cookies are filed under.
func hostKey(u *url.URL) string {
	return strings.ToLower(u.Hostname())
}

// hostURL is the URL cookies of host are replayed against. https lets
// Secure cookies through; the inner jar does not record the scheme otherwise.
func hostURL(host string) *url.URL {
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return &url.URL{Scheme: "https", Host: host, Path: "/"}
}

// defaultPath is the cookie path used when a server sets none (RFC 6265 5.1.4).
func defaultPath(urlPath string) string {
	if urlPath == "" || urlPath[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(urlPath, "/")
	if i == 0 {
		return "/"
	}
	return urlPath[:i]
}

func (j *FSCookieJar) remember(host string, c *storedCookie) {
	cookies, ok := j.servers[host]
	if !ok {
		cookies = make(map[string]*storedCookie)
		j.servers[host] = cookies
	}
	cookies[c.id()] = c
}

// SetCookies implements http.CookieJar
func (j *FSCookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)

	j.mu.Lock()
	defer j.mu.Unlock()

	host := hostKey(u)
	if host == "" {
		return
	}
	now := time.Now()
	for _, c := range cookies {
		stored := &storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   strings.TrimPrefix(strings.ToLower(c.Domain), "."),
			Path:     c.Path,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		if stored.Path == "" || stored.Path[0] != '/' {
			stored.Path = defaultPath(u.Path)
		}
		if c.MaxAge > 0 {
			stored.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if c.MaxAge < 0 || stored.expired(now) {
			delete(j.servers[host], stored.id())
		} else {
			j.remember(host, stored)
		}
		j.modified = true
	}
}

// Cookies implements http.CookieJar
func (j *FSCookieJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// ListServers returns the host names with stored cookies, sorted.
func (j *FSCookieJar) ListServers() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	servers := make([]string, 0, len(j.servers))
	for k, cookies := range j.servers {
		if len(cookies) > 0 {
			servers = append(servers, k)
		}
	}
	sort.Strings(servers)
	return servers
}

// Clear forgets every cookie stored for the host of serverURL, on any port.
// serverURL may also be a bare host name.
func (j *FSCookieJar) Clear(serverURL string) error {
	u, err := url.Parse(serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	host := hostKey(u)
	if host == "" {
		if u, err = url.Parse("https://" + serverURL); err != nil {
			return fmt.Errorf("invalid server URL: %w", err)
		}
		host = hostKey(u)
	}
	if host == "" {
		return fmt.Errorf("invalid server URL: %q has no host", serverURL)
	}

	j.mu.Lock()
	expired := make([]*http.Cookie, 0, len(j.servers[host]))
	for _, c := range j.servers[host] {
		expired = append(expired, &http.Cookie{Name: c.Name, Domain: c.Domain, Path: c.Path, MaxAge: -1})
	}
	delete(j.servers, host)
	j.modified = true
	j.mu.Unlock()

	j.jar.SetCookies(hostURL(host), expired)
	return nil
}

// Save persists cookies to disk
func (j *FSCookieJar) Save() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.modified {
		return nil
	}

	// Ensure directory exists with restricted permissions
	dir := filepath.Dir(j.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file := cookieFile{Servers: make(map[string][]*storedCookie, len(j.servers))}
	for server, cookies := range j.servers {
		for _, c := range cookies {
			file.Servers[server] = append(file.Servers[server], c)
		}
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize cookies: %w", err)
	}

	// Write with restricted permissions (owner read/write only)
	if err := os.WriteFile(j.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookies: %w", err)
	}

	j.modified = false
	return nil
}

// Path returns the path to the cookies file
func (j *FSCookieJar) Path() string {
	return j.path
}
