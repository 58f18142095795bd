/*
	Copyright 2026 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/hyperdrive-race/cmd"

func main() {
	cmd.Execute()
}
