package client

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
)

const (
	jarDir  = ".go-identity-admin"
	jarFile = "cookies.json"
)

// storedCookie is the persisted form of a session cookie.
type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitzero"`
}

// FileJar is a cookie jar for one console that survives process restarts.
type FileJar struct {
	mu      sync.Mutex
	path    string
	base    *url.URL
	jar     *cookiejar.Jar
	cookies map[string]storedCookie
}

var _ http.CookieJar = (*FileJar)(nil)

// DefaultJarPath is ~/.go-identity-admin/cookies.json.
func DefaultJarPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user home directory")
	}

	return filepath.Join(home, jarDir, jarFile), nil
}

// NewFileJar loads the cookies stored at path for the console at base.
func NewFileJar(path string, base *url.URL) (*FileJar, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "failed to create cookie directory")
	}

	j := &FileJar{path: path, base: base, cookies: map[string]storedCookie{}}
	if err := j.reset(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return j, nil
		}

		return nil, errors.Wrap(err, "failed to read cookie file")
	}

	var stored []storedCookie
	if err = json.Unmarshal(data, &stored); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal cookie file")
	}

	now := time.Now()
	restore := make([]*http.Cookie, 0, len(stored))

	for _, sc := range stored {
		if !sc.Expires.IsZero() && !sc.Expires.After(now) {
			continue
		}

		j.cookies[sc.Name] = sc
		restore = append(restore, &http.Cookie{Name: sc.Name, Value: sc.Value, Path: "/", Expires: sc.Expires})
	}

	j.jar.SetCookies(base, restore)

	return j, nil
}

// SetCookies implements http.CookieJar and persists the console's cookies.
func (j *FileJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	if u.Host != j.base.Host {
		return
	}

	now := time.Now()

	for _, ck := range cookies {
		if ck.MaxAge < 0 || (!ck.Expires.IsZero() && !ck.Expires.After(now)) {
			delete(j.cookies, ck.Name)

			continue
		}

		j.cookies[ck.Name] = storedCookie{Name: ck.Name, Value: ck.Value, Expires: ck.Expires}
	}

	_ = j.save()
}

// Cookies implements http.CookieJar.
func (j *FileJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.jar.Cookies(u)
}

// Value returns a stored cookie value.
func (j *FileJar) Value(name string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	sc, ok := j.cookies[name]
	if !ok {
		return "", errors.Wrap(ErrUnknownCookie, name)
	}

	return sc.Value, nil
}

// Clear forgets all cookies and deletes the file.
func (j *FileJar) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.cookies = map[string]storedCookie{}
	if err := j.reset(); err != nil {
		return err
	}

	if err := os.Remove(j.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete cookie file")
	}

	return nil
}

func (j *FileJar) reset() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return errors.Wrap(err, "create cookie jar")
	}

	j.jar = jar

	return nil
}

func (j *FileJar) save() error {
	stored := make([]storedCookie, 0, len(j.cookies))
	for _, sc := range j.cookies {
		stored = append(stored, sc)
	}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal cookies")
	}

	return errors.Wrap(os.WriteFile(j.path, data, 0o600), "failed to write cookie file")
}
