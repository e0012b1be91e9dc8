package main

import "dessertcast/cmd"

func main() {
	cmd.Execute()
}
