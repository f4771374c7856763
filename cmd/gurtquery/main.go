// gurtquery is a small debugging client: it performs one overlay
// exchange against a gurtd (or any GURT server) and prints the result.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gurtlabs/gurtd/internal/resolver"
	"github.com/gurtlabs/gurtd/internal/transport"
)

func main() {
	var (
		rawURL  = flag.String("url", "gurt://search.real/health/ready", "Overlay URL to fetch")
		dnsHost = flag.String("dns-host", "", "Resolver domain (empty disables the resolver)")
		dnsAddr = flag.String("dns-addr", "", "Resolver literal address")
		dnsPort = flag.Int("dns-port", 0, "Resolver port (0 means default)")
		timeout = flag.Duration("timeout", 30*time.Second, "Whole-exchange timeout")
		ua      = flag.String("user-agent", "gurtquery/0.1", "User agent header")
		quiet   = flag.Bool("quiet", false, "Suppress output (exit status indicates success)")
	)
	flag.Parse()

	var res transport.Resolver
	if *dnsHost != "" || *dnsAddr != "" {
		res = resolver.New(resolver.Config{
			Host:      *dnsHost,
			Addr:      *dnsAddr,
			Port:      *dnsPort,
			UserAgent: *ua,
		})
	}

	client := transport.New(transport.Options{
		Resolver:  res,
		Timeouts:  transport.Timeouts{Fetch: *timeout},
		UserAgent: *ua,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	resp, err := client.Fetch(ctx, *rawURL)
	if err != nil {
		if !*quiet {
			fmt.Fprintf(os.Stderr, "gurtquery error: %v\n", err)
		}
		os.Exit(1)
	}
	if *quiet {
		if !resp.Status.Success() {
			os.Exit(1)
		}
		return
	}

	fmt.Printf("status=%d %s bytes=%d\n", int(resp.Status), resp.Status.Reason(), len(resp.Body))
	for _, h := range resp.Headers {
		fmt.Printf("%s: %s\n", h.Name, h.Value)
	}

	// Pretty-print JSON bodies, dump everything else raw.
	var pretty map[string]interface{}
	if err := json.Unmarshal(resp.Body, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("\n%s\n", out)
		return
	}
	fmt.Printf("\n%s\n", resp.Body)
}
