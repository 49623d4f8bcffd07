package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"tabnet-harvester/internal/cli"
)

// @title TabNet Harvester API
// @version 1.0
// @description Start oncology statistics harvests and read their progress, errors and result documents.
// @BasePath /api/v1
func main() {
	err := cli.Execute()
	_ = zap.L().Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
