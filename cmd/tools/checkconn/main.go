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
		sample  = flag.Int("sample", 5, "number of products and paid orders to list")
		timeout = flag.Duration("timeout", 30*time.Second, "overall timeout for the check")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v\nset SHOPIFY_SHOP_DOMAIN, SHOPIFY_ADMIN_ACCESS_TOKEN and optionally SHOPIFY_API_VERSION", err)
	}

	client, _, err := app.NewShopifyClient(cfg, zerolog.Nop(), nil)
	if err != nil {
		log.Fatalf("init client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	fmt.Printf("endpoint: %s\n", client.Endpoint())
	summary, err := client.ShopInfo(ctx, *sample)
	if err != nil {
		log.Fatalf("connection failed: %v\ncheck the shop domain, the token scopes (read_orders, read_products, write_products) and the API version", err)
	}
	printSummary(os.Stdout, summary)
}

func printSummary(w io.Writer, s shopify.ShopSummary) {
	fmt.Fprintln(w, "connection ok")
	fmt.Fprintf(w, "shop:     %s\n", s.Name)
	fmt.Fprintf(w, "domain:   %s\n", s.Domain)
	fmt.Fprintf(w, "currency: %s\n", s.CurrencyCode)

	fmt.Fprintf(w, "\nproducts (first %d):\n", len(s.Products))
	for i, p := range s.Products {
		fmt.Fprintf(w, "  %d. %s (%s)\n", i+1, p.Title, p.Handle)
	}
	fmt.Fprintf(w, "\npaid orders (first %d):\n", len(s.PaidOrders))
	for i, o := range s.PaidOrders {
		fmt.Fprintf(w, "  %d. %s - %s %s\n", i+1, o.Name, o.Amount, o.CurrencyCode)
	}
}
