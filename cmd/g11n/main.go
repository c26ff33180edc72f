package main

import "g11n/internal/cli"

func main() {
	cli.Execute()
}
