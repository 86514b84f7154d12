package server

import "net/http"

// VersionHeader carries the daemon version on liveness responses.
const VersionHeader = "X-Omhome-Version"

// LivenessHandler answers while the process serves HTTP, regardless of
// gateway reachability. HEAD gets the headers only.
func LivenessHandler(version string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(VersionHeader, version)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte("ok"))
		}
	})
}
