package main

import "github.com/cleandl/cleandl/cmd"

func main() {
	cmd.Execute()
}
