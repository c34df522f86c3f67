// Command enginecheck is a non-HTTP smoke driver for the Risk Engine: it
// wires an in-memory store and the cheap probe set, analyses one email
// address given on the command line, and prints the resulting envelope as
// JSON. Transport (HTTP, gRPC, ...) is out of scope; this is the minimal
// entrypoint that exercises engine.Engine end to end.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"signupguard/internal/config"
	"signupguard/internal/disposable"
	"signupguard/internal/email"
	"signupguard/internal/engine"
	"signupguard/internal/models"
	"signupguard/internal/pattern"
	"signupguard/internal/probes"
	"signupguard/internal/probes/dnsmx"
	"signupguard/internal/probes/entropy"
	"signupguard/internal/scoring"
	"signupguard/internal/store"
	"signupguard/internal/velocity"
)

func main() {
	ip := flag.String("ip", "203.0.113.1", "client IP to attribute the signup to")
	full := flag.Bool("full", false, "run in FULL mode instead of FAST")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: enginecheck [-ip=1.2.3.4] [-full] user@example.com")
		os.Exit(2)
	}
	rawEmail := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	backingStore := store.NewMemoryStore()
	parser := email.NewParser(email.DefaultAliasCapableDomains())
	registry := disposable.NewRegistry()

	patternDetector := pattern.New(backingStore)
	velocityCounter := velocity.New(backingStore, cfg.IPVelocityThreshold, cfg.DomainVelocityThreshold, cfg.DomainVelocityAllowlist)
	entropyProbe := entropy.New(cfg.EntropyThreshold)
	dnsProbe := dnsmx.New(backingStore, net.DefaultResolver)

	cheap := []probes.Probe{dnsProbe, entropyProbe, patternDetector, velocityCounter}

	scorer := scoring.New(cfg.Weights)
	e := engine.New(parser, registry, cheap, nil, patternDetector, scorer, nil, engine.Config{
		NewDomainThresholdDays: cfg.NewDomainThresholdDays,
	})

	mode := models.ModeFast
	if *full {
		mode = models.ModeFull
	}

	envelope, err := e.Analyse(context.Background(), models.EmailInput{RawEmail: rawEmail, IP: *ip}, mode, time.Now().Unix())
	if err != nil {
		fmt.Fprintf(os.Stderr, "analyse: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(envelope, "", "  ")
	fmt.Println(string(out))
}
