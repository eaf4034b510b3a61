package main

import (
	"fmt"
	"os"

	"github.com/blockedby/mailmerge/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("No files to check.")
		os.Exit(0)
	}

	failed := false
	for _, path := range os.Args[1:] {
		rc, err := config.LoadRunConfig(path)
		if err != nil {
			fmt.Printf("❌ %s: %v\n", path, err)
			failed = true
			continue
		}
		fmt.Printf("✅ %s is valid (table %q, chunk %d, flush every %d rows)\n",
			path, rc.TableName, rc.ChunkSize, rc.FlushThreshold)
	}

	if failed {
		os.Exit(1)
	}
}
