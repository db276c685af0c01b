package main

import "osmgrab/cmd"

func main() {
	cmd.Execute()
}
