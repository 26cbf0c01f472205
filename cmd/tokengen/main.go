package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/lumen-labs/lumen-gateway/internal/auth"
	"github.com/lumen-labs/lumen-gateway/internal/config"
)

func main() {
	subject := flag.String("subject", "", "token subject, usually a user or service ID (required)")
	username := flag.String("username", "", "display username (optional)")
	scopes := flag.String("scopes", "completion,solution", "comma-separated request classes the token may use")
	expires := flag.String("expires", "30d", "expiry duration (e.g., 30d, 720h)")
	issuer := flag.String("issuer", "lumen-gateway", "token issuer")
	secret := flag.String("secret", "", "signing secret (overrides JWT_SECRET env)")
	flag.Parse()

	if *subject == "" {
		flag.Usage()
		fmt.Fprintln(os.Stderr, "\nerror: -subject is required")
		os.Exit(1)
	}

	key := *secret
	if key == "" {
		key = os.Getenv("JWT_SECRET")
	}
	if key == "" {
		log.Fatal("no signing secret: pass -secret or set JWT_SECRET")
	}

	dur, err := auth.ParseDuration(*expires)
	if err != nil {
		log.Fatalf("invalid expires: %v", err)
	}

	var scopeList []string
	for _, s := range strings.Split(*scopes, ",") {
		if s = strings.TrimSpace(s); s != "" {
			scopeList = append(scopeList, s)
		}
	}

	cfg := config.JWTConfig{
		Secret:    key,
		Algorithm: "HS256",
		Issuer:    *issuer,
		Expiry:    dur,
	}

	token, err := auth.IssueToken(cfg, *subject, *username, scopeList)
	if err != nil {
		log.Fatalf("failed to issue token: %v", err)
	}

	expiresAt := time.Now().Add(dur)

	fmt.Println("=== Lumen Access Token Generated ===")
	fmt.Println()
	fmt.Printf("  Subject:  %s\n", *subject)
	if *username != "" {
		fmt.Printf("  Username: %s\n", *username)
	}
	fmt.Printf("  Scopes:   %s\n", strings.Join(scopeList, ", "))
	fmt.Printf("  Issuer:   %s\n", *issuer)
	fmt.Printf("  Expires:  %s\n", expiresAt.Format(time.RFC3339))
	fmt.Println()
	fmt.Println("  Access token:")
	fmt.Printf("  %s\n", token)
	fmt.Println()
	fmt.Println("====================================")
}
