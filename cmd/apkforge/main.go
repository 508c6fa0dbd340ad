// Command apkforge builds signed Android packages from App Inventor projects
package main

import (
	"context"
	"os"

	"github.com/apkforge/apkforge/pkg/cli"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := cli.ExecuteWithVersion(context.Background(), version); err != nil {
		os.Exit(1)
	}
}
