package main

import "MelodyMind/cmd"

func main() {
	cmd.Execute()
}
