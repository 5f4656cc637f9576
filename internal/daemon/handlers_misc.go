package daemon

import (
	"net/http"
	"os"

	"golang.org/x/sys/unix"

	"tidy/internal/api"
)

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.Health{Status: "ok"})
}

func (s *apiServer) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.Version{Version: Version})
}

func (s *apiServer) handleHostInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		s.writeError(w, http.StatusInternalServerError, "uname failed")
		return
	}
	hostname, _ := os.Hostname()
	s.writeJSON(w, http.StatusOK, api.HostInfo{
		System:   utsString(uts.Sysname),
		Release:  utsString(uts.Release),
		Version:  utsString(uts.Version),
		Machine:  utsString(uts.Machine),
		Hostname: hostname,
	})
}

func utsString(field [65]byte) string {
	for i, b := range field {
		if b == 0 {
			return string(field[:i])
		}
	}
	return string(field[:])
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStatus(s.daemon.runner.Status()))
}
