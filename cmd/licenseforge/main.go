// Command licenseforge runs the license management API server.
package main

import (
	"context"
	"fmt"
	"os"

	"licenseforge/internal/app"
)

func main() {
	application, err := app.New(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "licenseforge: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "licenseforge: %v\n", err)
		os.Exit(1)
	}
}
