package runtime

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

// recordingJar is a cookie jar that also remembers the last cookie stored under
// each name, whatever domain or path it was scoped to. The HTTP client calls
// SetCookies for every response, redirect hops included.
type recordingJar struct {
	jar    *cookiejar.Jar
	byName map[string]*http.Cookie
}

func newRecordingJar() *recordingJar {
	// cookiejar.New only fails on invalid options
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &recordingJar{jar: jar, byName: make(map[string]*http.Cookie)}
}

func (j *recordingJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.jar.SetCookies(u, cookies)
	for _, c := range cookies {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(time.Now())) {
			delete(j.byName, c.Name)
			continue
		}
		j.byName[c.Name] = c
	}
}

func (j *recordingJar) Cookies(u *url.URL) []*http.Cookie {
	return j.jar.Cookies(u)
}

// lookup prefers a cookie the jar would send to u, then any cookie stored under name.
// u may be nil.
func (j *recordingJar) lookup(u *url.URL, name string) (*http.Cookie, bool) {
	if u != nil {
		for _, c := range j.jar.Cookies(u) {
			if c.Name == name {
				return c, true
			}
		}
	}
	c, ok := j.byName[name]
	return c, ok
}
