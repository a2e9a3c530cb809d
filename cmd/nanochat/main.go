package main

import (
	"fmt"
	"os"

	"nanochat/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "nanochat:", err)
		os.Exit(1)
	}
}
