// Package dummy is the built-in target server for local experiments
// and end-to-end tests. Every endpoint answers JSON.
package dummy

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

type ServerConfig struct {
	Port int
}

// Handler builds the dummy routes; split out so tests can mount it on
// an httptest server.
func Handler() http.Handler {
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}

	// Health route, mirrors the canonical target's shape.
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"message":"Hello World","status":200}`)
	})

	// Fast (10-50ms)
	mux.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(40)+10) * time.Millisecond)
		writeJSON(w, http.StatusOK, `{"status":"ok","tier":"fast"}`)
	})

	// Medium (100-300ms)
	mux.HandleFunc("/medium", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(200)+100) * time.Millisecond)
		writeJSON(w, http.StatusOK, `{"status":"ok","tier":"medium"}`)
	})

	// Slow (1s-2s), useful for timeout behavior
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(1000)+1000) * time.Millisecond)
		writeJSON(w, http.StatusOK, `{"status":"ok","tier":"slow"}`)
	})

	// Flaky: random failures for error-rate experiments
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		rnd := rand.Float32()
		switch {
		case rnd < 0.2:
			writeJSON(w, http.StatusInternalServerError, `{"message":"Internal Server Error","status":500}`)
		case rnd < 0.4:
			writeJSON(w, http.StatusTooManyRequests, `{"message":"Too Many Requests","status":429}`)
		default:
			writeJSON(w, http.StatusOK, `{"status":"ok","tier":"flaky"}`)
		}
	})

	return mux
}

// Start serves until the process exits.
func Start(cfg ServerConfig) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	fmt.Printf("Dummy target running on http://localhost%s\n", addr)
	fmt.Println("   Endpoints: /health, /fast, /medium, /slow, /flaky")

	server := &http.Server{
		Addr:    addr,
		Handler: Handler(),
	}
	return server.ListenAndServe()
}
