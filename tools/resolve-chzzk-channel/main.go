package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aperso/monochat/internal/chzzk"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: resolve-chzzk-channel <url> [url2] ...")
		fmt.Println("\nExample:")
		fmt.Println("  resolve-chzzk-channel 'https://api.chzzk.naver.com/polling/v3.1/channels/<uuid>/live-status'")
		os.Exit(1)
	}

	urls := os.Args[1:]
	fmt.Printf("Resolving %d Chzzk channel(s)...\n\n", len(urls))

	failed := 0
	for _, url := range urls {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		session, err := chzzk.New(url).Resolve(ctx)
		cancel()

		if err != nil {
			fmt.Printf("✗ %s: %v\n", url, err)
			failed++
			continue
		}
		fmt.Printf("✓ %s\n", url)
		fmt.Printf("  channel id:   %s\n", session.ChannelID)
		fmt.Printf("  access token: %s\n", session.AccessToken)
	}

	if failed > 0 {
		os.Exit(1)
	}
}
