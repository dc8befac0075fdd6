package main

import (
	"context"

	"ballpark/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.ExecuteContext(context.Background(), version)
}
