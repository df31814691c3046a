package main

import "github.com/bookrag/bookrag/cmd"

func main() {
	cmd.Execute()
}
