package main

import "github.com/kozaktomas/me-in-moments/cmd"

func main() {
	cmd.Execute()
}
