package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-sales-stats/internal/app"
	"github.com/noah-isme/toko-sales-stats/internal/config"
	"github.com/noah-isme/toko-sales-stats/internal/shopify"
)

func main() {
	var (
		first     = flag.Int("first", 10, "number of products to inspect")
		namespace = flag.String("namespace", "", "metafield namespace; defaults to METAFIELD_NAMESPACE")
		timeout   = flag.Duration("timeout", 30*time.Second, "overall timeout")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ns := *namespace
	if ns == "" {
		ns = cfg.MetafieldNamespace
	}

	client, _, err := app.NewShopifyClient(cfg, zerolog.Nop(), nil)
	if err != nil {
		log.Fatalf("init client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	products, err := client.ProductMetafields(ctx, ns, *first)
	if err != nil {
		log.Fatalf("load metafields: %v", err)
	}
	printMetafields(os.Stdout, ns, products)
}

func printMetafields(w io.Writer, namespace string, products []shopify.ProductMetafields) {
	for _, p := range products {
		fmt.Fprintf(w, "%s (%s)\n  id: %s\n", p.Title, p.Handle, p.ID)
		if len(p.Metafields) == 0 {
			fmt.Fprintf(w, "  no %s metafields\n", namespace)
			continue
		}
		for _, m := range p.Metafields {
			fmt.Fprintf(w, "  %s: %s (%s)\n", m.Key, m.Value, m.Type)
		}
	}
}
