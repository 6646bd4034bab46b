package main

import (
	"log"

	"burnfaucet/services/faucetd"
)

func main() {
	if err := faucetd.Main(); err != nil {
		log.Fatalf("faucetd: %v", err)
	}
}
