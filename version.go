package main

import (
	"fmt"
	"strings"

	"github.com/shorturl/offline-agent/internal/agent"
	"github.com/shorturl/offline-agent/internal/version"
)

// printVersion 输出版本、缓存代与构建期固定的预缓存清单。
func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
	fmt.Fprintf(stdOut, "precache: %s\n", strings.Join(agent.DefaultManifest(), " "))
}
