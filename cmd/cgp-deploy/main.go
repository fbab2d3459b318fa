package main

import "github.com/baaaaaaaka/cgp-deploy/cmd/cgp-deploy/cmd"

func main() {
	cmd.Execute()
}
