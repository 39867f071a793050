// Package netrcauth authenticates outbound repository HTTP requests from a
// user's ~/.netrc file.
package netrcauth

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/jdx/go-netrc"
)

// SetAuth looks up host in the netrc file at path (if path is empty,
// $HOME/.netrc or $NETRC is used) and, if a machine entry exists, sets HTTP
// basic auth on request. Returns whether auth was set.
func SetAuth(request *http.Request, path string) (bool, error) {
	if request.URL == nil || request.URL.Host == "" {
		return false, nil
	}
	if path == "" {
		if env := os.Getenv("NETRC"); env != "" {
			path = env
		} else if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".netrc")
		}
	}
	if path == "" {
		return false, nil
	}
	if _, err := os.Stat(path); err != nil {
		return false, nil
	}
	rc, err := netrc.ParseFile(path)
	if err != nil {
		return false, err
	}
	machine := rc.Machine(request.URL.Hostname())
	if machine == nil {
		return false, nil
	}
	login := machine.Get("login")
	password := machine.Get("password")
	if login == "" && password == "" {
		return false, nil
	}
	request.SetBasicAuth(login, password)
	return true, nil
}
