// Command usertool creates a MediMate account from the terminal, for
// operator-managed users that should not go through the public sign-up form.
// The password is prompted rather than passed as a flag so it never lands in
// shell history.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/Srishyl/MediMate/dblayer"

	"cloud.google.com/go/firestore"
	"golang.org/x/term"
)

var (
	dataProject = flag.String("data-project", "", "GCP project that contains the application state.")
	name        = flag.String("name", "", "Display name for the new user.")
	email       = flag.String("email", "", "Email address for the new user.")
)

func do(ctx context.Context) error {
	fmt.Print("Password: ")
	pass, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("while reading password: %w", err)
	}
	fmt.Println()

	fstore, err := firestore.NewClient(ctx, *dataProject)
	if err != nil {
		return fmt.Errorf("while creating FireStore client: %w", err)
	}

	db := dblayer.New(fstore)
	user, err := db.RegisterUser(ctx, *name, *email, string(pass))
	if err != nil {
		return fmt.Errorf("while registering user: %w", err)
	}

	fmt.Printf("Created user %s (%s)\n", user.ID, user.Email)
	return nil
}

func main() {
	flag.Parse()

	if err := do(context.Background()); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}
