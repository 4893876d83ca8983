package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/stemsi/proctor-backend/internal/config"
	"github.com/stemsi/proctor-backend/internal/service"
	"golang.org/x/term"
)

// issue-token signs a token with the shared secret so a quiz stream or the
// admin dashboard can be exercised locally without the external auth service.
func main() {
	var (
		subject      string
		role         string
		ttl          time.Duration
		promptSecret bool
	)
	flag.StringVar(&subject, "subject", "", "Participant or admin identity (e-mail)")
	flag.StringVar(&role, "role", string(service.RoleParticipant), "Token role: participant or admin")
	flag.DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	flag.BoolVar(&promptSecret, "prompt-secret", false, "Read the signing secret from the terminal instead of JWT_SECRET")
	flag.Parse()

	subject = strings.TrimSpace(subject)
	if subject == "" {
		fmt.Fprintln(os.Stderr, "Error: -subject is required")
		flag.Usage()
		os.Exit(2)
	}

	r := service.Role(role)
	if r != service.RoleParticipant && r != service.RoleAdmin {
		fmt.Fprintf(os.Stderr, "Error: unknown role %q\n", role)
		os.Exit(2)
	}

	cfg := config.Load()
	if promptSecret {
		fmt.Fprint(os.Stderr, "Signing secret: ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading secret: %v\n", err)
			os.Exit(1)
		}
		cfg.JWTSecret = strings.TrimSpace(string(secret))
	}

	token, err := service.NewAuthService(cfg).IssueToken(subject, r, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
