// Command vsdr-discover browses the local network for advertised SDR
// endpoints via mDNS and prints their addresses.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/rjboer/vsdr/internal/registry"
)

func main() {
	timeout := flag.Duration("timeout", 4*time.Second, "browse duration")
	flag.Parse()

	hosts, err := registry.Discover(context.Background(), *timeout)
	if err != nil {
		log.Fatal(err)
	}
	if len(hosts) == 0 {
		fmt.Println("no SDR endpoints found")
		return
	}
	for _, h := range hosts {
		fmt.Printf("%-30s %s", h.Instance, h.Addr())
		if len(h.TXT) > 0 {
			fmt.Printf("  [%s]", strings.Join(h.TXT, " "))
		}
		fmt.Println()
	}
}
