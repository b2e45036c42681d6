package main

import "jobq/cmd"

func main() {
	cmd.Run()
}
