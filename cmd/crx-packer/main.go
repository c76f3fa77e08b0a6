package main

import "github.com/oshokin/crx-packer/cmd/crx-packer/cmd"

func main() {
	cmd.Execute()
}
