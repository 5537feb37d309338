// Package main generates caller token keys and mints caller tokens for
// the escrow API.
package main

import (
	"flag"
	"log"
	"os"

	entrypoint "github.com/jamiebones/crowd-funding-begi-begi/internal/platform/cmd"
	"github.com/jamiebones/crowd-funding-begi-begi/internal/tools/callertoken"
)

func main() {
	keygen := flag.Bool("keygen", false, "Print a new key pair as shell exports")
	caller := flag.String("caller", "", "Mint a token for this caller address")
	flag.Parse()
	log.SetPrefix(entrypoint.LogPrefix(entrypoint.ServiceCallerToken))

	switch {
	case *keygen:
		if err := callertoken.GenerateKeys(os.Stdout, nil); err != nil {
			log.Fatalf("generate caller token key: %v", err)
		}
	case *caller != "":
		if err := callertoken.IssueToken(os.Stdout, *caller, nil); err != nil {
			log.Fatalf("issue caller token: %v", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
