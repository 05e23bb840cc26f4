package main

import "github.com/Brownie44l1/ferplus/internal/cli"

func main() {
	cli.Execute()
}
