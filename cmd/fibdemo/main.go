// Command fibdemo exercises a fib.Table from the command line: it loads a
// list of CIDR prefixes, inserts them concurrently, runs a consistency
// check, then optionally answers one longest-prefix-match query against
// them. It is grounded on the flag-
// plus-logrus wiring in cloudflare-fgbgp's main and server/workerpool.go,
// scaled down to a single table rather than a full BGP daemon.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net/netip"
	"os"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fibroute/fib/fib"
)

func main() {
	prefixFile := flag.String("prefixes", "", "path to a newline-delimited list of CIDR prefixes to load")
	workers := flag.Int("workers", runtime.NumCPU(), "number of concurrent loader goroutines")
	query := flag.String("route", "", "an IP address to resolve via longest-prefix match after loading")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	log := logrus.New()
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	if *prefixFile == "" {
		fmt.Fprintln(os.Stderr, "usage: fibdemo -prefixes=routes.txt [-route=1.2.3.4] [-workers=N]")
		os.Exit(2)
	}

	prefixes, err := loadPrefixes(*prefixFile)
	if err != nil {
		log.WithError(err).Fatal("failed to load prefixes")
	}

	table := fib.New(fib.AddrIPv4, fib.Config{Logger: log})
	defer table.Close()

	loadConcurrently(table, prefixes, *workers)
	log.WithField("count", table.Stats().Entries).Info("load complete")

	if err := table.Check(); err != nil {
		log.WithError(err).Error("consistency check failed")
	}

	if *query != "" {
		addr, err := netip.ParseAddr(*query)
		if err != nil {
			log.WithError(err).Fatal("invalid -route address")
		}
		resolveRoute(table, addr, log)
	}
}

func loadPrefixes(path string) ([]netip.Prefix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []netip.Prefix
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		p, err := netip.ParsePrefix(line)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, sc.Err()
}

func loadConcurrently(table *fib.Table, prefixes []netip.Prefix, workers int) {
	ch := make(chan netip.Prefix, len(prefixes))
	for _, p := range prefixes {
		ch <- p
	}
	close(ch)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range ch {
				if !p.Addr().Is4() {
					continue
				}
				table.Get(fib.NewIPv4Prefix(p))
			}
		}()
	}
	wg.Wait()
}

func resolveRoute(table *fib.Table, addr netip.Addr, log logrus.FieldLogger) {
	host, err := addr.Prefix(32)
	if err != nil {
		log.WithError(err).Fatal("failed to build host prefix")
	}
	entry, ok := table.Route(fib.NewIPv4Prefix(host))
	if !ok {
		log.WithField("addr", addr).Info("no route matched")
		return
	}
	log.WithFields(logrus.Fields{"addr": addr, "matched": entry.Prefix}).Info("route resolved")
}
