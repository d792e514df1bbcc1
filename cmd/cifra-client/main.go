// cifra-client connects to a responder, negotiates cipher parameters and
// sends one encrypted message read from -message or stdin.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"time"

	"github.com/cifranet/cifra/internal/cmdutil"
	"github.com/cifranet/cifra/session"
	"github.com/cifranet/cifra/suite"
	"github.com/cifranet/cifra/transport"
)

func main() {
	var addr string
	var wsURL string
	var key string
	var keyType string
	var sourceID uint
	var destID uint
	var algorithm string
	var pkcs5 bool
	var message string
	var timeout time.Duration
	flag.StringVar(&addr, "addr", "127.0.0.1:50000", "responder TCP address")
	flag.StringVar(&wsURL, "ws-url", "", "responder websocket URL (overrides -addr)")
	flag.StringVar(&key, "key", "", "shared key")
	flag.StringVar(&keyType, "key-type", "ascii", "key interpretation: ascii or hex")
	flag.UintVar(&sourceID, "source-id", 0, "source id (0-65535)")
	flag.UintVar(&destID, "dest-id", 0, "destination id (0-65535)")
	flag.StringVar(&algorithm, "algorithm", "AES128,ECB", "algorithm and mode, comma separated")
	flag.BoolVar(&pkcs5, "pkcs5", false, "enable PKCS5 padding")
	flag.StringVar(&message, "message", "", "message to send (stdin when empty)")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "exchange timeout")
	flag.Parse()

	keyBytes, err := cmdutil.ParseKey(key, keyType)
	if err != nil {
		log.Fatalf("key: %v", err)
	}
	if sourceID > 0xffff || destID > 0xffff {
		log.Fatalf("source-id and dest-id must fit in 16 bits")
	}
	algName, modeName, err := cmdutil.SplitAlgorithm(algorithm)
	if err != nil {
		log.Fatalf("algorithm: %v", err)
	}
	alg, err := suite.AlgorithmByName(algName)
	if err != nil {
		log.Fatalf("algorithm: %v", err)
	}
	mode, err := suite.ModeByName(modeName)
	if err != nil {
		log.Fatalf("mode: %v", err)
	}

	plaintext := []byte(message)
	if message == "" {
		log.Printf("type your message, end with EOF (Ctrl+D)")
		plaintext, err = cmdutil.ReadMessage(os.Stdin)
		if err != nil {
			log.Fatalf("message: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var t transport.Transport
	if wsURL != "" {
		t, err = transport.DialWS(ctx, wsURL)
	} else {
		t, err = transport.Dial(ctx, addr)
	}
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer t.Close()

	opts := session.Options{
		Key:       keyBytes,
		SourceID:  uint16(sourceID),
		DestID:    uint16(destID),
		Algorithm: alg,
		Mode:      mode,
		Padding:   pkcs5,
	}
	if err := session.Initiate(ctx, t, opts, plaintext); err != nil {
		var pe *session.Error
		if errors.As(err, &pe) && len(pe.Supported) > 0 {
			log.Printf("responder supports:")
			for _, e := range pe.Supported {
				log.Printf("  %s %s padding=%v", e.Algorithm, e.Mode, e.Padding)
			}
		}
		log.Fatalf("exchange failed: %v", err)
	}
	log.Printf("message delivered (%d bytes, %s %s)", len(plaintext), alg, mode)
}
