// cifra-server listens for initiators and receives one encrypted message per
// connection: exchanges run strictly serially, one connection at a time.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cifranet/cifra/internal/cmdutil"
	"github.com/cifranet/cifra/observability"
	"github.com/cifranet/cifra/observability/prom"
	"github.com/cifranet/cifra/session"
	"github.com/cifranet/cifra/transport"
)

func main() {
	var listen string
	var ws bool
	var key string
	var keyType string
	var metricsListen string
	var configPath string
	var once bool
	var timeout time.Duration
	flag.StringVar(&listen, "listen", "127.0.0.1:50000", "listen address")
	flag.BoolVar(&ws, "ws", false, "accept websocket upgrades instead of raw TCP")
	flag.StringVar(&key, "key", "", "shared key")
	flag.StringVar(&keyType, "key-type", "ascii", "key interpretation: ascii or hex")
	flag.StringVar(&metricsListen, "metrics-listen", "", "Prometheus /metrics listen address (disabled when empty)")
	flag.StringVar(&configPath, "config", "", "optional JSON config file")
	flag.BoolVar(&once, "once", false, "exit after one exchange")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "per-exchange timeout")
	flag.Parse()

	if configPath != "" {
		cfg, err := loadConfig(configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		listen = cfg.Listen
		ws = cfg.WS
		metricsListen = cfg.MetricsListen
		if cfg.KeyFile != "" {
			b, err := os.ReadFile(cfg.KeyFile)
			if err != nil {
				log.Fatalf("key file: %v", err)
			}
			key = strings.TrimRight(string(b), "\r\n")
			keyType = cfg.KeyType
		}
	}

	keyBytes, err := cmdutil.ParseKey(key, keyType)
	if err != nil {
		log.Fatalf("key: %v", err)
	}

	observer := observability.NewAtomicExchangeObserver()
	if metricsListen != "" {
		reg := prom.NewRegistry()
		observer.Set(prom.NewExchangeObserver(reg))
		mux := http.NewServeMux()
		mux.Handle("/metrics", prom.Handler(reg))
		go func() {
			if err := http.ListenAndServe(metricsListen, mux); err != nil {
				log.Printf("metrics server: %v", err)
			}
		}()
		log.Printf("metrics on http://%s/metrics", metricsListen)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := session.ResponderOptions{Key: keyBytes, Observer: observer}
	srv := &server{opts: opts, observer: observer, timeout: timeout, once: once}
	if ws {
		err = srv.serveWS(ctx, listen)
	} else {
		err = srv.serveTCP(ctx, listen)
	}
	if err != nil {
		log.Fatalf("serve: %v", err)
	}
}

type server struct {
	opts     session.ResponderOptions
	observer observability.ExchangeObserver
	timeout  time.Duration
	once     bool

	mu sync.Mutex // Serializes exchanges across connections.
}

// exchange runs one exchange to completion and reports the outcome. The
// return value says whether the accept loop should keep going.
func (s *server) exchange(ctx context.Context, t transport.Transport, remote string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer t.Close()

	exCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	in, err := session.Respond(exCtx, t, s.opts)
	if err != nil {
		log.Printf("exchange with %s failed: %v", remote, err)
	} else {
		log.Printf(">>> from=%d to=%d (%s %s padding=%v)\n%s", in.SourceID, in.DestID,
			in.Algorithm, in.Mode, in.Padding, in.Plaintext)
	}
	return !s.once
}

func (s *server) serveTCP(ctx context.Context, listen string) error {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	defer ln.Close()
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	log.Printf("listening on %s", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				log.Printf("interrupted")
				return nil
			}
			return err
		}
		s.observer.ConnAccepted()
		log.Printf("connection accepted from %s", conn.RemoteAddr())
		if !s.exchange(ctx, transport.NewStream(conn), conn.RemoteAddr().String()) {
			return nil
		}
	}
}

func (s *server) serveWS(ctx context.Context, listen string) error {
	done := make(chan struct{})
	var closeOnce sync.Once
	mux := http.NewServeMux()
	mux.HandleFunc("/exchange", func(w http.ResponseWriter, r *http.Request) {
		t, err := transport.UpgradeWS(w, r)
		if err != nil {
			log.Printf("upgrade from %s failed: %v", r.RemoteAddr, err)
			return
		}
		s.observer.ConnAccepted()
		log.Printf("websocket accepted from %s", r.RemoteAddr)
		if !s.exchange(ctx, t, r.RemoteAddr) {
			closeOnce.Do(func() { close(done) })
		}
	})

	httpSrv := &http.Server{Addr: listen, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	log.Printf("websocket endpoint on ws://%s/exchange", listen)

	select {
	case <-ctx.Done():
		log.Printf("interrupted")
	case <-done:
	case err := <-errCh:
		return err
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
