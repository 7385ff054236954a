package main

import "github.com/duskline/duskline/cmd"

func main() {
	cmd.Execute()
}
