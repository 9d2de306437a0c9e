// File: cmd/admin-token/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"

	"telegram-story-bot/internal/infra/web"
)

// admin-token mints a bearer token for the admin API.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	secret := flag.String("secret", os.Getenv("ADMIN_JWT_SECRET"), "HS256 signing secret (ADMIN_JWT_SECRET)")
	subject := flag.String("sub", "admin", "token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *secret == "" {
		fmt.Fprintln(os.Stderr, "secret is required: pass -secret or set ADMIN_JWT_SECRET")
		os.Exit(2)
	}
	tok, err := web.NewAuthManager(*secret, *ttl).Mint(*subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
