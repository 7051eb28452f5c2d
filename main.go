package main

import "github.com/notargets/fastdiag/cmd"

func main() {
	cmd.Execute()
}
