package main

import "github.com/devicelab-dev/uiscout/pkg/cli"

func main() {
	cli.Execute()
}
