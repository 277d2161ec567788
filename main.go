package main

import "github.com/qobs-build/qpack/cmd"

func main() {
	cmd.Execute()
}
