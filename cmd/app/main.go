package main

import "StockPulse/internal/cli"

func main() {
	cli.Execute()
}
