package main

import "prodintel/cmd"

func main() {
	cmd.Execute()
}
