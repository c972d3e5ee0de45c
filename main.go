package main

import "github.com/eventsnap/photo-finder/cmd"

func main() {
	cmd.Execute()
}
