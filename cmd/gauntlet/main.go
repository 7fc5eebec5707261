// Package main provides the entry point for the gauntlet CLI.
//
// Gauntlet solves linked quiz-page challenges: it renders each page in a
// headless browser, works out what artifact and operation the page demands,
// computes an answer, submits it, and follows the returned next URL until
// the chain ends or the session deadline is hit.
//
// Usage:
//
//	gauntlet solve --email you@example.com --secret s3cret https://host/task/1
//	gauntlet serve
//
// See --help for all available options.
package main

// main is the entry point for gauntlet.
func main() {
	Execute()
}
