package main

// Build-time identity, injected via -ldflags:
//
//	go build -ldflags="-X main.commitHash=${COMMIT_HASH} -X main.buildTime=$(date -u +%Y%m%dT%H%M%SZ)"
//
// go run keeps the defaults.
var (
	commitHash = "dev"
	buildTime  = "unknown"
)
